// Package ratelimit throttles password guessing against the login
// endpoints.
//
// # Limiters
//
// MemoryLimiter: token bucket per client, for a single node
//
//	limiter := ratelimit.NewMemoryLimiter(ratelimit.DefaultConfig())
//	limiter.StartCleanup(ctx)
//
// RedisLimiter: fixed window counter shared by every node
//
//	limiter := ratelimit.NewRedisLimiter(redisClient, ratelimit.DefaultConfig(), "")
//
// # Middleware
//
// Middleware counts POST requests per client address and answers 429 with
// Retry-After once the limit is reached. Limiter errors fail open.
//
//	mw := ratelimit.NewMiddleware(limiter, time.Minute, trustProxy)
//	router.Use(mw.Handler)
//
// Default: 10 attempts per minute, burst of 5.
package ratelimit
