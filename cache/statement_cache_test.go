package cache

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCaches(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("select 1")

	c, err := NewStatementCache(4)
	require.NoError(t, err)

	first, release1, err := c.Acquire(context.Background(), db, "select 1")
	require.NoError(t, err)
	defer release1()
	second, release2, err := c.Acquire(context.Background(), db, "select 1")
	require.NoError(t, err)
	defer release2()

	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvictionClosesReleasedStatement(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("select 1").WillBeClosed()
	mock.ExpectPrepare("select 2")

	c, err := NewStatementCache(1)
	require.NoError(t, err)

	_, release, err := c.Acquire(context.Background(), db, "select 1")
	require.NoError(t, err)
	release()
	_, release, err = c.Acquire(context.Background(), db, "select 2")
	require.NoError(t, err)
	defer release()

	assert.False(t, c.Contains("select 1"))
	assert.True(t, c.Contains("select 2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvictedStatementStaysOpenWhileHeld(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("delete from t").WillBeClosed()
	mock.ExpectPrepare("delete from u")
	mock.ExpectExec("delete from t").WillReturnResult(sqlmock.NewResult(0, 3))

	c, err := NewStatementCache(1)
	require.NoError(t, err)

	held, release, err := c.Acquire(context.Background(), db, "delete from t")
	require.NoError(t, err)

	_, releaseOther, err := c.Acquire(context.Background(), db, "delete from u")
	require.NoError(t, err)
	defer releaseOther()
	require.False(t, c.Contains("delete from t"))

	res, err := held.ExecContext(context.Background())
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	release()
	release() // second call is a no-op
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseDefersHeldStatements(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("select 1").WillBeClosed()
	mock.ExpectExec("select 1").WillReturnResult(sqlmock.NewResult(0, 0))

	c, err := NewStatementCache(2)
	require.NoError(t, err)

	held, release, err := c.Acquire(context.Background(), db, "select 1")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())

	_, err = held.ExecContext(context.Background())
	require.NoError(t, err)
	release()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrepareError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("broken").WillReturnError(assert.AnError)

	c, err := NewStatementCache(2)
	require.NoError(t, err)

	_, _, err = c.Acquire(context.Background(), db, "broken")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, c.Len())
}

func TestInvalidSize(t *testing.T) {
	_, err := NewStatementCache(0)
	assert.Error(t, err)
}

// countingDriver prepares statements that fail once closed and counts
// prepares and closes.
type countingDriver struct {
	mu       sync.Mutex
	prepared int
	closed   int
}

func (d *countingDriver) Open(string) (driver.Conn, error) { return &countingConn{d: d}, nil }

func (d *countingDriver) Connect(context.Context) (driver.Conn, error) {
	return &countingConn{d: d}, nil
}

func (d *countingDriver) Driver() driver.Driver { return d }

type countingConn struct{ d *countingDriver }

func (c *countingConn) Prepare(string) (driver.Stmt, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.prepared++
	return &countingStmt{d: c.d}, nil
}

func (c *countingConn) Close() error { return nil }

func (c *countingConn) Begin() (driver.Tx, error) { return nil, errors.New("no transactions") }

type countingStmt struct {
	d      *countingDriver
	closed bool
}

func (s *countingStmt) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.d.closed++
	}
	return nil
}

func (s *countingStmt) NumInput() int { return -1 }

func (s *countingStmt) Exec([]driver.Value) (driver.Result, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.closed {
		return nil, errors.New("statement used after close")
	}
	return driver.RowsAffected(1), nil
}

func (s *countingStmt) Query([]driver.Value) (driver.Rows, error) {
	return nil, errors.New("not supported")
}

func TestConcurrentEviction(t *testing.T) {
	d := &countingDriver{}
	db := sql.OpenDB(d)
	defer db.Close()

	c, err := NewStatementCache(2)
	require.NoError(t, err)

	const workers, rounds = 16, 50
	errs := make(chan error, workers*rounds)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				query := fmt.Sprintf("select %d", (w+i)%5)
				stmt, release, err := c.Acquire(context.Background(), db, query)
				if err != nil {
					errs <- err
					continue
				}
				if _, err := stmt.ExecContext(context.Background()); err != nil {
					errs <- fmt.Errorf("%s: %w", query, err)
				}
				release()
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.LessOrEqual(t, c.Len(), 2)

	require.NoError(t, c.Close())
	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Positive(t, d.prepared)
	assert.Equal(t, d.prepared, d.closed)
}
