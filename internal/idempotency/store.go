// Package idempotency deduplicates retried transaction submissions keyed by
// a client supplied idempotency key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	medchain "github.com/medchain-labs/medchain/go"
)

// Status is the result of checking the store for a key.
type Status int

const (
	// StatusNotFound means the caller now owns the key and must call Complete or Fail.
	StatusNotFound Status = iota
	// StatusCached means a receipt was recorded for the key.
	StatusCached
	// StatusInFlight means another submission holds the key.
	StatusInFlight
)

// Store records submitted transaction receipts. Implementations must be safe
// for concurrent use.
type Store interface {
	// CheckAndMark atomically looks key up and marks it in flight when absent.
	// The returned channel is closed once the owning submission finishes.
	CheckAndMark(key string) (Status, *medchain.TxReceipt, chan struct{})

	// WaitForResult blocks until done is closed or ctx ends. A nil receipt
	// means the owning submission failed.
	WaitForResult(ctx context.Context, key string, done chan struct{}) (*medchain.TxReceipt, error)

	// Complete records receipt under key and releases waiters.
	Complete(key string, receipt *medchain.TxReceipt, done chan struct{})

	// Fail drops the in-flight marker without recording anything.
	Fail(key string, done chan struct{})
}

// Key derives a store key from the request scope (route and path values),
// the client key and the request body. Reusing a client key with a different
// body yields a different store key.
func Key(scope, clientKey string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(clientKey))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Do runs submit at most once per key while its receipt is cached. Failed
// submissions are not recorded so they can be retried. replayed reports
// whether the receipt came from the store.
func Do(ctx context.Context, store Store, key string, submit func(context.Context) (medchain.TxReceipt, error)) (receipt medchain.TxReceipt, replayed bool, err error) {
	for {
		status, cached, done := store.CheckAndMark(key)
		switch status {
		case StatusCached:
			return *cached, true, nil

		case StatusInFlight:
			result, err := store.WaitForResult(ctx, key, done)
			if err != nil {
				return medchain.TxReceipt{}, false, err
			}
			if result != nil {
				return *result, true, nil
			}
			continue
		}

		receipt, err := submit(ctx)
		if err != nil {
			store.Fail(key, done)
			return medchain.TxReceipt{}, false, err
		}
		store.Complete(key, &receipt, done)
		return receipt, false, nil
	}
}
