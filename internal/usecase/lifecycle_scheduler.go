package usecase

import (
	"sync"
	"time"
)

// LifecycleScheduler runs a teardown func for a room once it has stayed empty for
// the grace period. At most one timer is armed per room.
type LifecycleScheduler struct {
	grace time.Duration

	mu     sync.Mutex
	timers map[string]*armedTimer
	closed bool

	// running считает колбэки, которые уже стартовали
	running sync.WaitGroup
}

type armedTimer struct {
	timer *time.Timer
}

func NewLifecycleScheduler(grace time.Duration) *LifecycleScheduler {
	return &LifecycleScheduler{
		grace:  grace,
		timers: make(map[string]*armedTimer),
	}
}

// Arm starts the countdown for roomID, replacing any timer already armed for it.
func (s *LifecycleScheduler) Arm(roomID string, onExpire func(roomID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if prev, ok := s.timers[roomID]; ok {
		prev.timer.Stop()
	}

	entry := &armedTimer{}
	entry.timer = time.AfterFunc(s.grace, func() {
		s.mu.Lock()
		// таймер мог быть заменён или отменён, пока ждали мьютекс
		if s.timers[roomID] != entry {
			s.mu.Unlock()
			return
		}
		delete(s.timers, roomID)
		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()

		onExpire(roomID)
	})

	s.timers[roomID] = entry
}

// Cancel stops the timer armed for roomID. Safe when none is armed.
func (s *LifecycleScheduler) Cancel(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.timers[roomID]
	if !ok {
		return false
	}

	entry.timer.Stop()
	delete(s.timers, roomID)

	return true
}

func (s *LifecycleScheduler) Armed(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[roomID]
	return ok
}

// Close stops every timer and waits for teardowns already running; later Arm
// calls are ignored.
func (s *LifecycleScheduler) Close() {
	s.mu.Lock()

	for roomID, entry := range s.timers {
		entry.timer.Stop()
		delete(s.timers, roomID)
	}

	s.closed = true
	s.mu.Unlock()

	s.running.Wait()
}
