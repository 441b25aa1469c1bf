package storage

import (
	"sync"

	"github.com/example/carnest-gateway/internal/models"
)

// ReceiptStore records the outcome of submission attempts made through this
// gateway. Audit telemetry only; rides themselves live upstream.
type ReceiptStore interface {
	SaveReceipt(r *models.Receipt) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	receipts []*models.Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveReceipt(r *models.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, r)
	return nil
}

// Recent returns up to n of the latest receipts, newest first.
func (m *MemoryStore) Recent(n int) []*models.Receipt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n > len(m.receipts) {
		n = len(m.receipts)
	}
	out := make([]*models.Receipt, 0, n)
	for i := len(m.receipts) - 1; i >= len(m.receipts)-n; i-- {
		out = append(out, m.receipts[i])
	}
	return out
}
