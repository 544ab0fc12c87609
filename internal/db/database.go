package db

import (
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"customs-backend/internal/config"
	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
)

var DB *gorm.DB

// InitDB connects to the database and migrates the schema
func InitDB() {
	var err error

	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		logrus.Fatal("database DSN is required")
	}

	DB, err = gorm.Open(postgres.Open(config.AppConfig.Database.DSN), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		metrics.DBConnectionStatus.Set(0)
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	metrics.DBConnectionStatus.Set(1)
	logrus.Info("database connected")

	if err := DB.AutoMigrate(
		&models.User{},
		&models.Upload{},
		&models.Package{},
		&models.Shipment{},
		&models.FailureRecord{},
		&models.AuditLogEntry{},
		&models.TrackingEvent{},
	); err != nil {
		logrus.WithError(err).Fatal("schema migration failed")
	}

	logrus.Info("database schema migrated")
}
