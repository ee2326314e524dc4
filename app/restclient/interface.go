package restclient

import "context"

// Interface is the outbound JSON transport the generators post through.
type Interface interface {
	Post(ctx context.Context, endpoint string, body any, headers map[string]string) ([]byte, int, error)
}
