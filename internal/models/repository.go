package models

import (
	"context"
	"time"
)

// Repository persists verification records.
type Repository interface {
	// UpsertVerification inserts the record for userID or overwrites its wallet address and timestamp.
	UpsertVerification(ctx context.Context, userID, walletAddress string, verifiedAt time.Time) error
	// FindVerification returns nil, nil when the user has no record.
	FindVerification(ctx context.Context, userID string) (*VerificationRecord, error)
	Close() error
}
