package ledger

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyLocks hands out one weight-1 semaphore per key. Several keys are
// always acquired in sorted order so overlapping callers cannot deadlock.
type keyLocks struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func newKeyLocks() *keyLocks {
	return &keyLocks{sems: make(map[string]*semaphore.Weighted)}
}

func (l *keyLocks) sem(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.sems[key] = s
	}
	return s
}

// lock acquires every key and returns the matching release func.
func (l *keyLocks) lock(ctx context.Context, keys ...string) (func(), error) {
	keys = uniqueSorted(keys)
	held := make([]*semaphore.Weighted, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, k := range keys {
		s := l.sem(k)
		if err := s.Acquire(ctx, 1); err != nil {
			release()
			return nil, err
		}
		held = append(held, s)
	}
	return release, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func walletKey(id string) string      { return "wallet:" + id }
func transactionKey(id string) string { return "transaction:" + id }
