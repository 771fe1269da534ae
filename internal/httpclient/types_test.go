package httpclient_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/integrio/status-engine/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		expected   string
		statusCode int
	}{
		{
			name:       "direct error",
			err:        httpclient.NewHTTPError(404, "http://127.0.0.1:49153/dev/context", "404 Not Found"),
			expected:   "HTTP 404 for URL http://127.0.0.1:49153/dev/context: 404 Not Found",
			statusCode: 404,
		},
		{
			name:       "wrapped error",
			err:        fmt.Errorf("upload failed: %w", httpclient.NewHTTPError(500, "http://x/upload/a.txt", "boom")),
			expected:   "upload failed: HTTP 500 for URL http://x/upload/a.txt: boom",
			statusCode: 500,
		},
		{
			name:       "other error",
			err:        errors.New("connection refused"),
			expected:   "connection refused",
			statusCode: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.EqualError(t, tt.err, tt.expected)
			assert.Equal(t, tt.statusCode, httpclient.StatusCode(tt.err))
		})
	}
}
