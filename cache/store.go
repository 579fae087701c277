package cache

import (
	"context"
	"sync"
	"time"

	"memories/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store keeps recently read posts keyed by their hex id.
//
// Delete leaves a tombstone behind for the store's ttl. A tombstoned id reads
// as a miss and refuses Fill, so a read that loaded a post before it was
// deleted cannot put it back.
type Store interface {
	Get(ctx context.Context, id string) (*models.Post, bool, error)
	// Set stores post unconditionally. Used after writes.
	Set(ctx context.Context, post *models.Post) error
	// Fill stores post only when nothing is held for its id. Used by
	// read-through loads.
	Fill(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

type lruEntry struct {
	post    models.Post
	deleted bool
}

// LRUStore is a bounded in-process Store whose entries expire after ttl. It
// only sees writes made through this process; run several instances against
// a RedisStore instead.
type LRUStore struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, lruEntry]
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	if size <= 0 {
		size = 512
	}
	return &LRUStore{lru: expirable.NewLRU[string, lruEntry](size, nil, ttl)}
}

func (s *LRUStore) Get(_ context.Context, id string) (*models.Post, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lru.Get(id)
	if !ok || e.deleted {
		return nil, false, nil
	}
	out := e.post.Clone()
	return &out, true, nil
}

func (s *LRUStore) Set(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(post.ID.Hex(), lruEntry{post: post.Clone()})
	return nil
}

func (s *LRUStore) Fill(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := post.ID.Hex()
	if _, ok := s.lru.Peek(key); ok {
		return nil
	}
	s.lru.Add(key, lruEntry{post: post.Clone()})
	return nil
}

func (s *LRUStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lru.Add(id, lruEntry{deleted: true})
	return nil
}

func (s *LRUStore) Len() int {
	return s.lru.Len()
}
