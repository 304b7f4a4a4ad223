package query

import (
	"context"
	"iter"
)

// DefaultStreamBatchSize is the page size Stream uses when none is given.
const DefaultStreamBatchSize = 1000

// StreamOptions tunes streaming.
type StreamOptions struct {
	BatchSize int
}

// Stream yields every result by repeatedly paginating forward until the
// last page. The query must carry a non-empty ORDER BY, the same as
// Paginate; a failure ends the sequence with a non-nil error.
func (x *ExecutableQuery) Stream(ctx context.Context, opts StreamOptions) iter.Seq2[any, error] {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultStreamBatchSize
	}
	return func(yield func(any, error) bool) {
		cursor := ""
		for {
			page, err := x.Paginate(ctx, PaginateOptions{First: batch, After: cursor})
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			if !page.HasNextPage {
				return
			}
			cursor = page.NextCursor
		}
	}
}
