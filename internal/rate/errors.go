package rate

import "errors"

var (
	// ErrRateLimited is returned once a client has used its window's budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read and write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
