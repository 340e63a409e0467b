package engine

import (
	"context"

	"github.com/Konsultn-Engineering/silence/builder"
	"github.com/Konsultn-Engineering/silence/dberr"
)

// Page is one window of a result set. Num is 1-based. Total is filled
// only when SearchTotal is set.
type Page[T any] struct {
	Num         int
	Size        int
	SearchTotal bool
	Total       int64
	List        []T
}

// NewPage returns a page request that also counts the total.
func NewPage[T any](num, size int) *Page[T] {
	return &Page[T]{Num: num, Size: size, SearchTotal: true}
}

// Paginate renders template once and fills page from it.
func Paginate[T any](ctx context.Context, e *Executor, page *Page[T], template string, params any) (*Page[T], error) {
	sql, args, err := e.template.Build(template, params)
	if err != nil {
		return nil, err
	}
	return fillPage(ctx, e, page, sql, args)
}

// SimplePaginate fills page from sql with positional args.
func SimplePaginate[T any](ctx context.Context, e *Executor, page *Page[T], sql string, args ...any) (*Page[T], error) {
	return fillPage(ctx, e, page, sql, args)
}

func fillPage[T any](ctx context.Context, e *Executor, page *Page[T], sql string, args []any) (*Page[T], error) {
	if page == nil {
		return nil, dberr.New(dberr.KindEmptyInput, "page", "nil page")
	}
	if page.Size <= 0 {
		return nil, dberr.New(dberr.KindEmptyInput, "page", "page size must be positive, got %d", page.Size)
	}
	if page.Num < 1 {
		page.Num = 1
	}

	if page.SearchTotal {
		total, err := scalarCount(ctx, e, builder.CountOf(sql), args)
		if err != nil {
			return nil, err
		}
		page.Total = total
	}

	list, err := queryList[T](ctx, e, "page", builder.Paginate(sql, page.Num, page.Size), args)
	if err != nil {
		return nil, err
	}
	page.List = list
	return page, nil
}
