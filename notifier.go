package medchain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultNotificationTTL is how long a notification stays visible.
const DefaultNotificationTTL = 7 * time.Second

// NotificationKind classifies a notification for rendering
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// Notification is one user-facing outcome message. It always expires.
type Notification struct {
	ID        string           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Notifier is a time-boxed queue of outcome messages consumed by the
// presentation layer. Entries are dropped lazily once expired.
type Notifier struct {
	mu      sync.Mutex
	entries []Notification
	ttl     time.Duration
	now     func() time.Time
}

// NewNotifier creates a notifier whose entries live for ttl.
// A non-positive ttl selects DefaultNotificationTTL.
func NewNotifier(ttl time.Duration) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	return &Notifier{
		ttl: ttl,
		now: time.Now,
	}
}

// TTL returns the lifetime of new notifications.
func (n *Notifier) TTL() time.Duration {
	return n.ttl
}

// Push queues a message and returns the stored notification.
func (n *Notifier) Push(message string, kind NotificationKind) Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	entry := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(n.ttl),
	}
	n.entries = append(n.entries, entry)

	// Lazy cleanup of expired entries
	n.cleanupExpiredLocked(now)
	return entry
}

// Active returns unexpired notifications, oldest first.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cleanupExpiredLocked(n.now())
	out := make([]Notification, len(n.entries))
	copy(out, n.entries)
	return out
}

// Latest returns the most recent unexpired notification.
func (n *Notifier) Latest() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.cleanupExpiredLocked(n.now())
	if len(n.entries) == 0 {
		return Notification{}, false
	}
	return n.entries[len(n.entries)-1], true
}

// Dismiss removes a notification before it expires.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, entry := range n.entries {
		if entry.ID == id {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return true
		}
	}
	return false
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (n *Notifier) cleanupExpiredLocked(now time.Time) {
	kept := n.entries[:0]
	for _, entry := range n.entries {
		if now.Before(entry.ExpiresAt) {
			kept = append(kept, entry)
		}
	}
	n.entries = kept
}
