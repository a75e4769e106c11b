package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry 一个客户端在当前窗口内的计数
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window of e has passed at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ResetAt)
}

// Store 计数存储. Hit 必须是原子的: 窗口过期(或不存在)时以 Count=1 重建, 否则自增.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Hit(ctx context.Context, key string, now time.Time, window time.Duration) (Entry, error)
	// Sweep 删除 now 时已过期的条目, 返回删除数量
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, e Entry) error {
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || e.Expired(now) {
		e = Entry{Count: 1, ResetAt: now.Add(window)}
	} else {
		e.Count++
	}
	s.entries[key] = e
	return e, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len 当前条目数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
