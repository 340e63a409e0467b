// Package cache keeps prepared statements keyed by their SQL text.
package cache

import (
	"context"
	"database/sql"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Preparer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// entry is one prepared statement and the number of callers holding it.
// An evicted entry is closed once refs drops to zero.
type entry struct {
	stmt    *sql.Stmt
	refs    int
	evicted bool
}

type StatementCache struct {
	mu    sync.Mutex // guards the cache and every entry
	cache *lru.Cache[string, *entry]
}

// NewStatementCache keeps up to size statements. Evicted statements are
// closed when their last holder releases them.
func NewStatementCache(size int) (*StatementCache, error) {
	s := &StatementCache{}
	cache, err := lru.NewWithEvict(size, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.cache = cache
	return s, nil
}

// onEvict runs inside Add and Purge, which are only called with s.mu held.
func (s *StatementCache) onEvict(_ string, e *entry) {
	e.evicted = true
	if e.refs == 0 {
		_ = e.stmt.Close()
	}
}

// Acquire returns the statement for query, preparing it on db when
// missing. The statement stays open until release is called, even if it
// is evicted meanwhile. release may be called more than once.
func (s *StatementCache) Acquire(ctx context.Context, db Preparer, query string) (stmt *sql.Stmt, release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(query)
	if !ok {
		stmt, err = db.PrepareContext(ctx, query)
		if err != nil {
			return nil, nil, err
		}
		e = &entry{stmt: stmt}
		s.cache.Add(query, e)
	}
	e.refs++

	var once sync.Once
	return e.stmt, func() { once.Do(func() { s.release(e) }) }, nil
}

func (s *StatementCache) release(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refs--
	if e.refs == 0 && e.evicted {
		_ = e.stmt.Close()
	}
}

// Contains reports whether query has a cached statement.
func (s *StatementCache) Contains(query string) bool {
	return s.cache.Contains(query)
}

// Len returns the number of cached statements.
func (s *StatementCache) Len() int {
	return s.cache.Len()
}

// Close evicts every statement. Statements still held close on release.
func (s *StatementCache) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Purge()
	return nil
}
