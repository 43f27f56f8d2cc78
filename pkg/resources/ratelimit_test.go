package resources

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	return router
}

func request(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr

	router.ServeHTTP(w, req)

	return w
}

func TestRateLimiter_Middleware(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0.5, 2, 0)
	defer rl.Close()

	router := newLimitedRouter(rl)

	assert.Equal(t, http.StatusOK, request(router, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, request(router, "10.0.0.1:1234").Code)

	w := request(router, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error": "too many requests, please try again later"}`, w.Body.String())

	// every client gets its own bucket
	assert.Equal(t, http.StatusOK, request(router, "10.0.0.2:1234").Code)
	assert.Equal(t, 2, rl.Clients())
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 3, 0)
	defer rl.Close()

	router := newLimitedRouter(rl)

	for range 10 {
		assert.Equal(t, http.StatusOK, request(router, "10.0.0.1:1234").Code)
	}

	assert.Zero(t, rl.Clients())
}

func TestRateLimiter_Cleanup(t *testing.T) {
	t.Parallel()

	now := time.Date(2030, 2, 4, 12, 0, 0, 0, time.UTC)

	rl := NewRateLimiter(10, 10, 0)
	rl.interval = time.Minute
	rl.now = func() time.Time { return now }

	rl.get("10.0.0.1")

	now = now.Add(90 * time.Second)
	rl.get("10.0.0.2")

	now = now.Add(45 * time.Second)
	rl.cleanup()

	assert.Equal(t, 1, rl.Clients())
	rl.mu.Lock()
	_, kept := rl.clients["10.0.0.2"]
	rl.mu.Unlock()
	assert.True(t, kept)
}

func TestRateLimiter_Close(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 1, time.Millisecond)

	assert.NotPanics(t, func() {
		rl.Close()
		rl.Close()
	})
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rps  float64
		want int
	}{
		{name: "fast", rps: 50, want: 1},
		{name: "one every two seconds", rps: 0.5, want: 2},
		{name: "disabled", rps: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, NewRateLimiter(tt.rps, 1, 0).retryAfter())
		})
	}
}
