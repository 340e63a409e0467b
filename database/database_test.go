package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Konsultn-Engineering/silence/cache"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*SqlDatabase, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	return NewSqlDatabase(db), mock
}

func TestSqlQuery(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery("select id from t where a = ?").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10).AddRow(11))

	rows, err := db.QueryContext(context.Background(), "select id from t where a = ?", 1)
	require.NoError(t, err)
	defer rows.Close()

	cols, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, cols)

	var ids []int
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{10, 11}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlExec(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectExec("insert into t (a) values (?)").
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(9, 1))

	res, err := db.ExecContext(context.Background(), "insert into t (a) values (?)", "x")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlExecBatch(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	prep := mock.ExpectPrepare("insert into t (a) values (?)")
	prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(2, 1))
	prep.WillBeClosed()

	n, err := db.ExecBatch(context.Background(), "insert into t (a) values (?)", [][]any{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlStatementCache(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	stmts, err := cache.NewStatementCache(8)
	require.NoError(t, err)
	db := NewSqlDatabase(raw, WithStatementCache(stmts))
	defer db.Close()

	prep := mock.ExpectPrepare("delete from t where id = ?")
	prep.ExpectExec().WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs(2).WillReturnResult(sqlmock.NewResult(0, 1))

	for _, id := range []int{1, 2} {
		_, err := db.ExecContext(context.Background(), "delete from t where id = ?", id)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, stmts.Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlCachedRowsOutliveEviction(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)

	stmts, err := cache.NewStatementCache(1)
	require.NoError(t, err)
	db := NewSqlDatabase(raw, WithStatementCache(stmts))
	defer db.Close()

	mock.ExpectPrepare("select id from t limit 2 offset 0").
		WillBeClosed().
		ExpectQuery().
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectPrepare("select id from t limit 2 offset 2").
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := db.QueryContext(context.Background(), "select id from t limit 2 offset 0")
	require.NoError(t, err)

	// Evicts the statement behind the open rows.
	_, err = db.ExecContext(context.Background(), "select id from t limit 2 offset 2")
	require.NoError(t, err)
	require.False(t, stmts.Contains("select id from t limit 2 offset 0"))

	var ids []int
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())

	assert.Equal(t, []int{1, 2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSqlQueryError(t *testing.T) {
	db, mock := newMock(t)
	defer db.Close()

	mock.ExpectQuery("select 1").WillReturnError(assert.AnError)
	_, err := db.QueryContext(context.Background(), "select 1")
	assert.ErrorIs(t, err, assert.AnError)
}

type fakeBatch struct {
	tags []pgconn.CommandTag
	errs []error
	n    int
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) {
	i := b.n
	b.n++
	return b.tags[i], b.errs[i]
}
func (b *fakeBatch) Query() (pgx.Rows, error) { return nil, nil }
func (b *fakeBatch) QueryRow() pgx.Row        { return nil }
func (b *fakeBatch) Close() error             { return nil }

type fakePool struct {
	queued  int
	batch   *fakeBatch
	execTag pgconn.CommandTag
	closed  bool
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, assert.AnError
}
func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return p.execTag, nil
}
func (p *fakePool) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	p.queued = b.Len()
	return p.batch
}
func (p *fakePool) Ping(context.Context) error { return nil }
func (p *fakePool) Close()                     { p.closed = true }

func TestPgxExecBatch(t *testing.T) {
	pool := &fakePool{batch: &fakeBatch{
		tags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1"), pgconn.NewCommandTag("INSERT 0 1")},
		errs: []error{nil, nil},
	}}
	db := NewPgxDatabase(pool)

	n, err := db.ExecBatch(context.Background(), "insert into t (a) values ($1)", [][]any{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, pool.queued)

	require.NoError(t, db.Close())
	assert.True(t, pool.closed)
}

func TestPgxExecBatchStopsOnError(t *testing.T) {
	pool := &fakePool{batch: &fakeBatch{
		tags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1"), {}},
		errs: []error{nil, assert.AnError},
	}}
	n, err := NewPgxDatabase(pool).ExecBatch(context.Background(), "q", [][]any{{1}, {2}})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, int64(1), n)
}

func TestPgxResult(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("UPDATE 3")}
	res, err := NewPgxDatabase(pool).ExecContext(context.Background(), "update t set a = 1")
	require.NoError(t, err)

	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = res.LastInsertId()
	assert.Error(t, err)

	_, err = NewPgxDatabase(pool).QueryContext(context.Background(), "select 1")
	assert.ErrorIs(t, err, assert.AnError)
}
