package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// recordedResponse is what gets replayed when a client retries a request
// with a key that already went through, such as a ride request resent
// after a dropped mobile connection.
type recordedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// captureWriter tees the response body so it can be recorded after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the recorded response for a repeated
// Idempotency-Key instead of running the handler again. Requests without
// the header, and non-mutating methods, pass straight through. A Redis
// failure degrades to normal processing rather than rejecting the request.
func IdempotencyMiddleware(client *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := "idempotency:" + key

		data, err := client.Get(ctx, storeKey).Bytes()
		if err == nil {
			var recorded recordedResponse
			if json.Unmarshal(data, &recorded) == nil {
				c.Data(recorded.StatusCode, recorded.ContentType, recorded.Body)
				c.Abort()
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			c.Next()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Server errors are retryable, so only record outcomes the
		// client should not re-run.
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			return
		}

		recorded, err := json.Marshal(recordedResponse{
			StatusCode:  status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			return
		}
		_ = client.Set(ctx, storeKey, recorded, idempotencyTTL).Err()
	}
}
