// Package datasource defines the contract for byte sources of input data.
// The batch driver only ever reads local files (see the file subpackage),
// but the loader code depends on this interface so tests can substitute
// in-memory sources.
package datasource

import (
	"context"
	"io"
)

// Source opens one input for reading. Open must respect context
// cancellation.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
