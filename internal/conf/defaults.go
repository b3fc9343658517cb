package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for all settings.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "WindWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/windwatch.log")

	viper.SetDefault("output.database.type", "sqlite")
	viper.SetDefault("output.database.path", "windwatch.db")
	viper.SetDefault("output.database.dsn", "")

	viper.SetDefault("http.host", "0.0.0.0")
	viper.SetDefault("http.port", 8080)
	viper.SetDefault("http.basepath", "/api/v1")

	viper.SetDefault("metrics.baseurl", "http://localhost:9200")
	viper.SetDefault("metrics.apikey", "")
	viper.SetDefault("metrics.requesttimeout", 10*time.Second)
	viper.SetDefault("metrics.cachettl", 30*time.Second)

	viper.SetDefault("alerting.evaluationinterval", 1*time.Minute)
	viper.SetDefault("alerting.workerpoolsize", 8)
	viper.SetDefault("alerting.deliveryattempts", 3)
	viper.SetDefault("alerting.deliverybackoff", 2*time.Second)
	viper.SetDefault("alerting.digestcheckinterval", 1*time.Hour)

	viper.SetDefault("smtp.enabled", false)
	viper.SetDefault("smtp.url", "")

	viper.SetDefault("security.tokenttl", 24*time.Hour)
}
