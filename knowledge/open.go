package knowledge

import (
	"context"
	"fmt"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the log for a configured backend.
func Open(ctx context.Context, backend, path string) (Log, error) {
	switch backend {
	case "", BackendJSON:
		return OpenFileLog(path)
	case BackendSQLite:
		return OpenSQLiteLog(ctx, path)
	default:
		return nil, fmt.Errorf("unknown knowledge backend %q", backend)
	}
}
