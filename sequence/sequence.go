// Package sequence holds the request payloads of the distributed ID
// sequence service and the contract its clients satisfy.
package sequence

import (
	"context"
	"encoding/json"

	"github.com/Konsultn-Engineering/silence/dberr"
)

// GetIDRequest asks for Size consecutive IDs of DB.Table.
type GetIDRequest struct {
	DB    string `json:"db"`
	Table string `json:"table"`
	Size  int    `json:"size"`
}

// SetIDRequest sets or resets the current ID of DB.Table.
type SetIDRequest struct {
	DB    string `json:"db"`
	Table string `json:"table"`
	ID    int64  `json:"id"`
}

// Client talks to the sequence service.
type Client interface {
	NextIDs(ctx context.Context, req GetIDRequest) ([]int64, error)
	SetID(ctx context.Context, req SetIDRequest) error
}

func (r GetIDRequest) Validate() error {
	if err := validateTarget("get id", r.DB, r.Table); err != nil {
		return err
	}
	if r.Size <= 0 {
		return dberr.New(dberr.KindEmptyInput, "get id", "size must be positive, got %d", r.Size)
	}
	return nil
}

func (r SetIDRequest) Validate() error {
	if err := validateTarget("set id", r.DB, r.Table); err != nil {
		return err
	}
	if r.ID < 0 {
		return dberr.New(dberr.KindTypeMismatch, "set id", "id must not be negative, got %d", r.ID)
	}
	return nil
}

func validateTarget(op, db, table string) error {
	if db == "" {
		return dberr.New(dberr.KindEmptyInput, op, "db is required")
	}
	if table == "" {
		return dberr.New(dberr.KindEmptyInput, op, "table is required")
	}
	return nil
}

// Encode validates req and marshals it for the wire.
func Encode(req interface{ Validate() error }) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(req)
}
