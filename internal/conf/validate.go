package conf

import (
	"github.com/windwatch/windwatch-go/internal/errors"
)

// Validate checks the settings for values the engine cannot run with.
func (s *Settings) Validate() error {
	switch s.Output.Database.Type {
	case "sqlite":
		if s.Output.Database.Path == "" {
			return validationError("output.database.path", "sqlite database path is empty")
		}
	case "mysql":
		if s.Output.Database.DSN == "" {
			return validationError("output.database.dsn", "mysql DSN is empty")
		}
	default:
		return validationError("output.database.type", "unsupported database type: "+s.Output.Database.Type)
	}

	if s.HTTP.Port <= 0 || s.HTTP.Port > 65535 {
		return validationError("http.port", "port out of range")
	}

	if s.Alerting.EvaluationInterval <= 0 {
		return validationError("alerting.evaluationinterval", "evaluation interval must be positive")
	}
	if s.Alerting.WorkerPoolSize <= 0 {
		return validationError("alerting.workerpoolsize", "worker pool size must be positive")
	}
	if s.Alerting.DeliveryAttempts <= 0 {
		return validationError("alerting.deliveryattempts", "delivery attempts must be positive")
	}
	if s.Alerting.DigestCheckInterval <= 0 {
		return validationError("alerting.digestcheckinterval", "digest check interval must be positive")
	}

	if s.SMTP.Enabled && s.SMTP.URL == "" {
		return validationError("smtp.url", "smtp enabled but no service URL configured")
	}

	return nil
}

func validationError(field, message string) error {
	return errors.Newf("%s", message).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("field", field).
		Build()
}
