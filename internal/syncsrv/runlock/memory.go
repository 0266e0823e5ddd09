package runlock

import (
	"context"
	"sync"

	"github.com/flowershow/contentsync/internal/common/apperrors"
	"github.com/flowershow/contentsync/internal/common/uuid"
)

// MemoryLocker keeps one single slot channel per site. It serializes runs
// within one process only.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[uuid.UUID]chan struct{})}
}

func (m *MemoryLocker) slot(siteID uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[siteID]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[siteID] = s
	}
	return s
}

func (m *MemoryLocker) Acquire(ctx context.Context, siteID uuid.UUID) (Lock, apperrors.Error) {
	s := m.slot(siteID)
	select {
	case s <- struct{}{}:
		return &memoryLock{slot: s}, nil
	case <-ctx.Done():
		return nil, ErrLock.MsgErr("timed out waiting for run lock", ctx.Err())
	}
}

func (m *MemoryLocker) TryAcquire(ctx context.Context, siteID uuid.UUID) (Lock, apperrors.Error) {
	s := m.slot(siteID)
	select {
	case s <- struct{}{}:
		return &memoryLock{slot: s}, nil
	default:
		return nil, ErrAlreadySyncing
	}
}

func (m *MemoryLocker) Held(ctx context.Context, siteID uuid.UUID) (bool, apperrors.Error) {
	return len(m.slot(siteID)) > 0, nil
}

type memoryLock struct {
	once sync.Once
	slot chan struct{}
}

func (l *memoryLock) Release(ctx context.Context) apperrors.Error {
	l.once.Do(func() { <-l.slot })
	return nil
}
