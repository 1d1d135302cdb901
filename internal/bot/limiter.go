package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterPool keeps one token bucket per Telegram user so a single
// flooding chat cannot starve everyone else.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLimiterPool(perMinute int) *limiterPool {
	if perMinute <= 0 {
		perMinute = 6
	}
	return &limiterPool{
		limiters: map[int64]*rate.Limiter{},
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

// Allow reports whether the user may make another request right now.
func (p *limiterPool) Allow(telegramID int64) bool {
	p.mu.Lock()
	limiter, ok := p.limiters[telegramID]
	if !ok {
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[telegramID] = limiter
	}
	p.mu.Unlock()
	return limiter.Allow()
}
