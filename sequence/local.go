package sequence

import (
	"context"
	"sync"
)

// LocalClient is an in-process Client. IDs start at 1 per table. The zero
// value is ready to use.
type LocalClient struct {
	mu      sync.Mutex
	current map[string]int64
}

func NewLocalClient() *LocalClient {
	return &LocalClient{current: make(map[string]int64)}
}

func (c *LocalClient) NextIDs(ctx context.Context, req GetIDRequest) ([]int64, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.init()

	key := req.DB + "." + req.Table
	ids := make([]int64, req.Size)
	for i := range ids {
		c.current[key]++
		ids[i] = c.current[key]
	}
	return ids, nil
}

func (c *LocalClient) SetID(ctx context.Context, req SetIDRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.init()
	c.current[req.DB+"."+req.Table] = req.ID
	c.mu.Unlock()
	return nil
}

// init allocates the table map. c.mu must be held.
func (c *LocalClient) init() {
	if c.current == nil {
		c.current = make(map[string]int64)
	}
}
