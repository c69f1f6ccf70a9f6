package ports

import (
	"context"
	"io"
)

// HTTPClient fetches remote resources. The returned body must be closed by the caller.
type HTTPClient interface {
	Download(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, map[string]string, error)
}
