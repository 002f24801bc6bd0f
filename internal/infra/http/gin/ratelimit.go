package ginserver

import (
	"net/http"
	"sync"
	"time"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ClientLimiter applies a token bucket per client to write routes.
type ClientLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func NewClientLimiter(perSecond float64, burst int) *ClientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ClientLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    10 * time.Minute,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (l *ClientLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst), seen: now}
		l.clients[client] = b
		l.evict(now)
	}
	b.seen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ClientLimiter) evict(now time.Time) {
	for key, b := range l.clients {
		if now.Sub(b.seen) > l.idle {
			delete(l.clients, key)
		}
	}
}

// Middleware keys clients by principal header, falling back to the remote address.
func (l *ClientLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		client := c.GetHeader(principalHeader)
		if client == "" {
			client = c.ClientIP()
		}
		if !l.Allow(client) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
