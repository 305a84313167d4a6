package ratelimit

import "context"

// discardLimiter 总是放行的限流器（内部使用）
type discardLimiter struct{}

// Discard 返回一个总是放行的 Limiter
//
// 适合测试，或在中间件/拦截器中作为 nil limiter 的安全回退。
func Discard() Limiter {
	return &discardLimiter{}
}

func (d *discardLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (d *discardLimiter) AllowN(ctx context.Context, key string, n int) (bool, error) {
	return true, nil
}

func (d *discardLimiter) RuleFor(key string) Rule {
	return Rule{}
}

func (d *discardLimiter) Close() error {
	return nil
}
