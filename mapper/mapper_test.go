package mapper

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Konsultn-Engineering/silence/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t testing.TB) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// query returns live rows for the given mock result.
func query(t *testing.T, result *sqlmock.Rows) *sql.Rows {
	t.Helper()
	db, mock := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(result)
	rows, err := db.Query("select")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rows.Close() })
	return rows
}

type Point struct {
	X int `db:"x"`
	Y int `db:"y"`
}

type Shape struct {
	A     int    `db:"a"`
	Child Point  `db:"child"`
	Ref   *Point `db:"ref"`
}

type Region struct {
	Name  string
	Shape *Shape
}

type Upper string

func (u *Upper) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		*u = Upper(strings.ToUpper(string(v)))
	case string:
		*u = Upper(strings.ToUpper(v))
	default:
		return errors.New("unsupported")
	}
	return nil
}

type Person struct {
	ID        int64          `db:"id"`
	FirstName string         `db:"first_name"`
	Nick      sql.NullString `db:"nick"`
	Code      Upper          `db:"code"`
	Born      time.Time      `db:"born"`
	Score     *float64       `db:"score"`
}

func TestMapNestedChild(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"a", "child__x", "child__y"}).AddRow(1, 2, 3))

	got, err := MapOne[Shape](rows)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, Shape{A: 1, Child: Point{X: 2, Y: 3}}, *got)
}

func TestMapPointerChild(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"a", "ref__x", "ref__y"}).
		AddRow(1, 5, 6).
		AddRow(2, nil, nil))

	got, err := MapAll[Shape](rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &Point{X: 5, Y: 6}, got[0].Ref)
	assert.Nil(t, got[1].Ref, "all-null child columns leave the pointer nil")
}

func TestMapDeepNesting(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"name", "shape__a", "shape__child__x", "shape__ref__y"}).
		AddRow("r", 1, 2, 3))

	got, err := MapOne[Region](rows)
	require.NoError(t, err)
	require.NotNil(t, got.Shape)
	assert.Equal(t, "r", got.Name)
	assert.Equal(t, 1, got.Shape.A)
	assert.Equal(t, 2, got.Shape.Child.X)
	assert.Equal(t, &Point{Y: 3}, got.Shape.Ref)
}

func TestMapConversions(t *testing.T) {
	born := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)
	rows := query(t, sqlmock.NewRows([]string{"id", "FirstName", "nick", "code", "born", "score", "extra"}).
		AddRow([]byte("42"), "ann", nil, []byte("ab"), born, 1.5, "ignored"))

	got, err := MapOne[Person](rows)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "ann", got.FirstName)
	assert.False(t, got.Nick.Valid)
	assert.Equal(t, Upper("AB"), got.Code)
	assert.True(t, born.Equal(got.Born))
	require.NotNil(t, got.Score)
	assert.Equal(t, 1.5, *got.Score)
}

func TestMapOneCardinality(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"x", "y"}).AddRow(1, 2).AddRow(3, 4))

	_, err := MapOne[Point](rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrCardinality)
}

func TestMapOneNoRows(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"x", "y"}))

	got, err := MapOne[Point](rows)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMapAllEmpty(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"x"}))

	got, err := MapAll[Point](rows)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMapScalars(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"count(*)"}).AddRow(int64(7)))
	n, err := MapOne[int](rows)
	require.NoError(t, err)
	assert.Equal(t, 7, *n)

	rows = query(t, sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow("b"))
	names, err := MapAll[string](rows)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestMapPointerTargets(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"x", "y"}).AddRow(1, 2))

	got, err := MapAll[*Point](rows)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, &Point{X: 1, Y: 2}, got[0])
}

func TestMapUnknownChildIgnored(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"a", "other__x"}).AddRow(1, 2))

	got, err := MapOne[Shape](rows)
	require.NoError(t, err)
	assert.Equal(t, Shape{A: 1}, *got)
}

func TestMapTypeMismatch(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"x"}).AddRow("not a number"))

	_, err := MapAll[Point](rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrTypeMismatch)
	assert.Contains(t, err.Error(), "column x")
}

func TestMapRowError(t *testing.T) {
	rows := query(t, sqlmock.NewRows([]string{"x"}).
		AddRow(1).
		RowError(0, errors.New("boom")))

	_, err := MapAll[Point](rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrDataAccess)
}

func TestMapNilRows(t *testing.T) {
	_, err := MapAll[Point](nil)
	assert.ErrorIs(t, err, dberr.ErrEmptyInput)
}

func TestBuffersReused(t *testing.T) {
	sb := getBuffers(3)
	require.Len(t, sb.ptrs, 3)
	sb.vals[0] = "x"
	putBuffers(sb)

	sb = getBuffers(2)
	defer putBuffers(sb)
	assert.Len(t, sb.vals, 2)
	for i := range sb.vals {
		assert.Nil(t, sb.vals[i])
		assert.Same(t, &sb.vals[i], sb.ptrs[i].(*any))
	}
}
