package repository

import (
	"context"
	"sync"
	"time"

	"github.com/anthroposcity/actgate/internal/models"
)

// MemoryDB keeps verification records in process. Used in development without Postgres and in tests.
type MemoryDB struct {
	mu      sync.RWMutex
	records map[string]models.VerificationRecord
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{records: make(map[string]models.VerificationRecord)}
}

func (m *MemoryDB) UpsertVerification(_ context.Context, userID, walletAddress string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = models.VerificationRecord{
		UserID:        userID,
		WalletAddress: walletAddress,
		IsVerified:    true,
		VerifiedAt:    verifiedAt.UTC(),
	}
	return nil
}

func (m *MemoryDB) FindVerification(_ context.Context, userID string) (*models.VerificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[userID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// Len returns the number of stored records.
func (m *MemoryDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *MemoryDB) Close() error {
	return nil
}
