package memory

import (
	"context"
	"time"

	"github.com/clipper/clipper-api/internal/core/ports"
)

type window struct {
	start time.Time
	end   time.Time
	count int
}

// CounterStore is an in-process fixed-window counter for the rate limiter.
type CounterStore struct {
	windows *shardedMap[*window]
}

var _ ports.CounterStore = (*CounterStore)(nil)

func NewCounterStore() *CounterStore {
	return &CounterStore{windows: newShardedMap[*window](defaultShards)}
}

// IncrementIfBelow counts a request in the window aligned on now.Truncate(w).
func (s *CounterStore) IncrementIfBelow(_ context.Context, key string, limit int, w time.Duration, now time.Time) (ports.WindowCount, error) {
	start := now.Truncate(w)
	var out ports.WindowCount

	s.windows.with(key, func(m map[string]*window) {
		cur, ok := m[key]
		if !ok || !cur.start.Equal(start) {
			cur = &window{start: start, end: start.Add(w)}
			m[key] = cur
		}
		out.ResetAt = cur.end
		if cur.count >= limit {
			out.Count = cur.count
			return
		}
		cur.count++
		out.Allowed = true
		out.Count = cur.count
	})
	return out, nil
}

// Sweep drops windows that ended before now.
func (s *CounterStore) Sweep(now time.Time) int {
	return s.windows.deleteIf(func(_ string, w *window) bool {
		return !now.Before(w.end)
	})
}
