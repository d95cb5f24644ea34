package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLock admits one owner per key without blocking.
type keyedLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]uuid.UUID
}

func (l *keyedLock) tryAcquire(key, owner uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = make(map[uuid.UUID]uuid.UUID)
	}
	if _, taken := l.held[key]; taken {
		return false
	}
	l.held[key] = owner
	return true
}

func (l *keyedLock) release(key, owner uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == owner {
		delete(l.held, key)
	}
}
