package resources

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client IP. Idle buckets are evicted
// after twice the cleanup interval. A non-positive rate turns limiting off.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	interval time.Duration

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(rps float64, burst int, cleanupInterval time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		interval: cleanupInterval,
		clients:  make(map[string]*clientLimiter),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	if rl.limit <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		client := c.ClientIP()

		if !rl.get(client).Allow() {
			log.Ctx(c.Request.Context()).Warn().Str("client_ip", client).Str("path", c.FullPath()).Msg("rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please try again later"})

			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return len(rl.clients)
}

func (rl *RateLimiter) get(client string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = cl
	}

	cl.lastAccess = rl.now()

	return cl.limiter
}

func (rl *RateLimiter) retryAfter() int {
	if rl.limit <= 0 {
		return 1
	}

	return max(1, int(math.Ceil(1.0/float64(rl.limit))))
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	ttl := rl.interval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for client, cl := range rl.clients {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.clients, client)
		}
	}
}
