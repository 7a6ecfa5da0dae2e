package feed

import (
	"golang.org/x/time/rate"
)

// newLimiter builds a token-bucket limiter from a requests-per-second
// figure, defaulting to an unlimited limiter when rps <= 0 (spec.md
// §4.1 "RateLimitRPS defaults to unlimited").
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
