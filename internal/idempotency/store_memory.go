package idempotency

import (
	"context"
	"sync"
	"time"

	medchain "github.com/medchain-labs/medchain/go"
)

// DefaultTTL is how long receipts stay replayable.
const DefaultTTL = 10 * time.Minute

// InMemoryStore is a process-local Store with expiring entries.
type InMemoryStore struct {
	mu       sync.Mutex
	receipts map[string]medchain.TxReceipt
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryStore creates a store keeping receipts for ttl. A non-positive
// ttl selects DefaultTTL.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryStore{
		receipts: make(map[string]medchain.TxReceipt),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *InMemoryStore) CheckAndMark(key string) (Status, *medchain.TxReceipt, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receipt, ok := s.lookupLocked(key); ok {
		return StatusCached, &receipt, nil
	}
	if done, ok := s.inFlight[key]; ok {
		return StatusInFlight, nil, done
	}

	done := make(chan struct{})
	s.inFlight[key] = done
	return StatusNotFound, nil, done
}

func (s *InMemoryStore) WaitForResult(ctx context.Context, key string, done chan struct{}) (*medchain.TxReceipt, error) {
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if receipt, ok := s.lookupLocked(key); ok {
		return &receipt, nil
	}
	return nil, nil
}

func (s *InMemoryStore) Complete(key string, receipt *medchain.TxReceipt, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receipts[key] = *receipt
	s.expiry[key] = s.now().Add(s.ttl)
	delete(s.inFlight, key)
	close(done)

	s.cleanupExpiredLocked()
}

func (s *InMemoryStore) Fail(key string, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inFlight, key)
	close(done)
}

// Len returns the number of unexpired receipts.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()
	return len(s.receipts)
}

func (s *InMemoryStore) lookupLocked(key string) (medchain.TxReceipt, bool) {
	expiry, ok := s.expiry[key]
	if !ok {
		return medchain.TxReceipt{}, false
	}
	if !s.now().Before(expiry) {
		delete(s.receipts, key)
		delete(s.expiry, key)
		return medchain.TxReceipt{}, false
	}
	return s.receipts[key], true
}

// cleanupExpiredLocked must be called with mu held.
func (s *InMemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiry := range s.expiry {
		if !now.Before(expiry) {
			delete(s.receipts, key)
			delete(s.expiry, key)
		}
	}
}

var _ Store = (*InMemoryStore)(nil)
