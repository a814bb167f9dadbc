package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"telegram_appointment_bot/pkg/logger"
)

// TokenBucket реализует алгоритм Token Bucket для rate limiting
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // токенов в секунду
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket создает новый TokenBucket
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow проверяет, доступен ли токен
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int(elapsed.Seconds()) * tb.refillRate
	tb.tokens = min(tb.capacity, tb.tokens+tokensToAdd)
	tb.lastRefill = now

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// RateLimiter ограничивает частоту запросов по клиентскому IP
type RateLimiter struct {
	limiters   map[string]*TokenBucket
	lastAccess map[string]time.Time
	mu         sync.Mutex
	capacity   int
	refillRate int
	log        *logger.Logger
	done       chan struct{}
}

// NewRateLimiter создает rate limiter: requests запросов за duration
func NewRateLimiter(requests int, duration time.Duration, log *logger.Logger) *RateLimiter {
	refillRate := int(float64(requests) / duration.Seconds())
	if refillRate == 0 {
		refillRate = 1
	}

	rl := &RateLimiter{
		limiters:   make(map[string]*TokenBucket),
		lastAccess: make(map[string]time.Time),
		capacity:   requests,
		refillRate: refillRate,
		log:        log,
		done:       make(chan struct{}),
	}

	go rl.cleanupRoutine()
	return rl
}

// Allow проверяет лимит для ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	bucket, ok := rl.limiters[key]
	if !ok {
		bucket = NewTokenBucket(rl.capacity, rl.refillRate)
		rl.limiters[key] = bucket
	}
	rl.lastAccess[key] = time.Now()
	rl.mu.Unlock()

	return bucket.Allow()
}

// Close останавливает фоновую очистку
func (rl *RateLimiter) Close() {
	close(rl.done)
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for key, last := range rl.lastAccess {
		if last.Before(cutoff) {
			delete(rl.limiters, key)
			delete(rl.lastAccess, key)
		}
	}
}

// RateLimit оборачивает обработчик проверкой лимита по IP
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !rl.Allow(key) {
				rl.log.Warn("превышен лимит запросов", logger.String("ip", key))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
