package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

func NewPostgresDB(user, password, dbname, host string, port int, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(&models.VerificationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL", "host", host, "db", dbname)
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// UpsertVerification relies on INSERT ... ON CONFLICT (whop_user_id) DO UPDATE,
// so concurrent writers for one user collapse into a single row.
func (db *PostgresDB) UpsertVerification(ctx context.Context, userID, walletAddress string, verifiedAt time.Time) error {
	record := models.VerificationRecord{
		UserID:        userID,
		WalletAddress: walletAddress,
		IsVerified:    true,
		VerifiedAt:    verifiedAt.UTC(),
	}

	err := db.Conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "whop_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"wallet_address", "is_verified", "verified_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert verification for %s: %w", userID, err)
	}

	db.logger.Debug("Verification upserted", "user_id", userID, "wallet", walletAddress)
	return nil
}

func (db *PostgresDB) FindVerification(ctx context.Context, userID string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	if err := db.Conn.WithContext(ctx).Where("whop_user_id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get verification for %s: %w", userID, err)
	}

	return &record, nil
}
