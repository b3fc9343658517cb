package datastore

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// performAutoMigration runs gorm AutoMigrate for all engine tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&User{},
		&Windfarm{},
		&PortfolioMembership{},
		&AlertRule{},
		&AlertTrigger{},
		&Notification{},
		&NotificationPreference{},
	); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migration").
			Context("db_type", dbType).
			Build()
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}

// createGormLogger returns a gorm logger that only surfaces slow queries
// and errors, keeping routine evaluation-tick queries out of the logs.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
