package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/silence/dberr"
)

var _ Client = (*LocalClient)(nil)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  interface{ Validate() error }
		kind dberr.Kind
	}{
		{name: "get ok", req: GetIDRequest{DB: "app", Table: "user", Size: 10}},
		{name: "get missing db", req: GetIDRequest{Table: "user", Size: 1}, kind: dberr.KindEmptyInput},
		{name: "get missing table", req: GetIDRequest{DB: "app", Size: 1}, kind: dberr.KindEmptyInput},
		{name: "get zero size", req: GetIDRequest{DB: "app", Table: "user"}, kind: dberr.KindEmptyInput},
		{name: "set ok", req: SetIDRequest{DB: "app", Table: "user", ID: 100}},
		{name: "set zero", req: SetIDRequest{DB: "app", Table: "user"}},
		{name: "set negative", req: SetIDRequest{DB: "app", Table: "user", ID: -1}, kind: dberr.KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.kind == dberr.KindUnknown {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.kind, dberr.KindOf(err))
		})
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(GetIDRequest{DB: "app", Table: "user", Size: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"db":"app","table":"user","size":3}`, string(data))

	data, err = Encode(SetIDRequest{DB: "app", Table: "user", ID: 7})
	require.NoError(t, err)
	assert.JSONEq(t, `{"db":"app","table":"user","id":7}`, string(data))

	_, err = Encode(GetIDRequest{})
	assert.Error(t, err)
}

func TestLocalClient(t *testing.T) {
	ctx := context.Background()
	c := NewLocalClient()

	ids, err := c.NextIDs(ctx, GetIDRequest{DB: "app", Table: "user", Size: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	require.NoError(t, c.SetID(ctx, SetIDRequest{DB: "app", Table: "user", ID: 100}))
	ids, err = c.NextIDs(ctx, GetIDRequest{DB: "app", Table: "user", Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 102}, ids)

	ids, err = c.NextIDs(ctx, GetIDRequest{DB: "app", Table: "order", Size: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	_, err = c.NextIDs(ctx, GetIDRequest{DB: "app", Table: "user"})
	assert.ErrorIs(t, err, dberr.ErrEmptyInput)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.NextIDs(cancelled, GetIDRequest{DB: "app", Table: "user", Size: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalClientZeroValue(t *testing.T) {
	ctx := context.Background()

	var c LocalClient
	ids, err := c.NextIDs(ctx, GetIDRequest{DB: "shop", Table: "orders", Size: 2})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	var reset LocalClient
	require.NoError(t, reset.SetID(ctx, SetIDRequest{DB: "shop", Table: "orders", ID: 40}))
	ids, err = reset.NextIDs(ctx, GetIDRequest{DB: "shop", Table: "orders", Size: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{41}, ids)
}

func TestLocalClientConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewLocalClient()

	var wg sync.WaitGroup
	results := make([][]int64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids, err := c.NextIDs(ctx, GetIDRequest{DB: "app", Table: "user", Size: 5})
			assert.NoError(t, err)
			results[i] = ids
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, ids := range results {
		for _, id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, 40)
}
