package collector

import (
	"context"
	"log"
	"sync"
	"time"
)

// pollLoop runs fn immediately and then on every tick until ctx is cancelled.
func pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) {
	log.Printf("collector %s starting (interval %s)", name, interval)
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("collector %s stopped", name)
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

const defaultSeenCapacity = 5000

// seenSet remembers the most recent ids in insertion order.
type seenSet struct {
	mu    sync.Mutex
	limit int
	ids   map[string]struct{}
	order []string
}

func newSeenSet(capacity int) *seenSet {
	if capacity <= 0 {
		capacity = defaultSeenCapacity
	}
	return &seenSet{limit: capacity, ids: make(map[string]struct{}, capacity)}
}

// add reports whether id was new.
func (s *seenSet) add(id string) bool {
	if id == "" {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.ids, oldest)
	}
	return true
}
