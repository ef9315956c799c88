package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// SlotLocks serialises check-then-insert sequences per (room, date) pair.
//
// Locks are reference counted so that entries for idle slots are released
// once the last holder unlocks.
type SlotLocks struct {
	mu    sync.Mutex
	slots map[string]*slotLock
}

type slotLock struct {
	mu      sync.Mutex
	holders int
}

// NewSlotLocks returns an empty lock table.
func NewSlotLocks() *SlotLocks {
	return &SlotLocks{slots: make(map[string]*slotLock)}
}

// Lock blocks until the caller holds the slot for roomID on date and returns
// the function that releases it.
func (l *SlotLocks) Lock(roomID int64, date time.Time) (unlock func()) {
	key := slotKey(roomID, date)

	l.mu.Lock()
	entry, ok := l.slots[key]
	if !ok {
		entry = &slotLock{}
		l.slots[key] = entry
	}
	entry.holders++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.holders--
			if entry.holders == 0 {
				delete(l.slots, key)
			}
			l.mu.Unlock()
		})
	}
}

// Held returns the number of slots that currently have holders or waiters.
func (l *SlotLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func slotKey(roomID int64, date time.Time) string {
	return fmt.Sprintf("%d|%s", roomID, date.Format(time.DateOnly))
}
