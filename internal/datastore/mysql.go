package datastore

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/errors"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection and runs migrations.
func (store *MySQLStore) Open() error {
	dsn := store.Settings.Output.Database.DSN

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger(), TranslateError: true})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("db_type", "mysql").
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL", "mysql")
}

// New returns the store implementation selected by the configuration.
func New(settings *conf.Settings) Interface {
	if settings.Output.Database.Type == "mysql" {
		return &MySQLStore{Settings: settings}
	}
	return &SQLiteStore{Settings: settings}
}
