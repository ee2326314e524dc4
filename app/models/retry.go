package models

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"GoEvolveAI/app/logging"
	"GoEvolveAI/app/restclient"
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.Status, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// postAndParse posts payload and decodes the response into out. Transport
// errors, 429 and 5xx are retried with exponential backoff.
func postAndParse(ctx context.Context, rc restclient.Interface, endpoint string, payload any,
	headers map[string]string, maxAttempts int, backoff time.Duration, out any) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var err error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff * time.Duration(1<<uint(i-1))):
			}
		}

		var body []byte
		var status int
		body, status, err = rc.Post(ctx, endpoint, payload, headers)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Log("⚠️ Generation request failed", slog.LevelWarn, "attempt", i+1, "error", err)
			continue
		}
		if status < 200 || status >= 300 {
			statusErr := &StatusError{Status: status, Body: truncateBody(body)}
			if !statusErr.retryable() {
				return statusErr
			}
			err = statusErr
			logging.Log("⚠️ Generation request rejected", slog.LevelWarn, "attempt", i+1, "status", status)
			continue
		}
		if err = json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", maxAttempts, err)
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "…"
	}
	return string(body)
}
