package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/vocal-vent/pkg/logging"
)

// VelocityChecker limits how many payments one visitor may start per window.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	max    int
	window time.Duration
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker creates a checker allowing max attempts per window. A
// non-positive max disables the check.
func NewVelocityChecker(redisClient *redis.Client, max int, window time.Duration, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = time.Hour
	}
	return &VelocityChecker{redis: redisClient, logger: logger, max: max, window: window}
}

// CheckInitialize counts one initialize attempt for clientKey. Redis failures
// fail open.
func (v *VelocityChecker) CheckInitialize(ctx context.Context, clientKey string) *VelocityResult {
	ctx, span := tracer.Start(ctx, "velocity.check_initialize")
	defer span.End()

	if v == nil || v.redis == nil || v.max <= 0 || clientKey == "" {
		return &VelocityResult{Allowed: true}
	}

	key := fmt.Sprintf("vocalvent:velocity:payment:%s", clientKey)
	count, expiry, err := v.incrementAndGet(ctx, key)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}
	}

	result := &VelocityResult{
		Allowed:      count <= v.max,
		CurrentCount: count,
		MaxAllowed:   v.max,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d payment attempts in %s", v.max, v.window)
		v.logger.Warn("payment velocity exceeded", "client", clientKey, "count", count, "max", v.max)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result
}

// Reset clears the counter for clientKey.
func (v *VelocityChecker) Reset(ctx context.Context, clientKey string) error {
	return v.redis.Del(ctx, fmt.Sprintf("vocalvent:velocity:payment:%s", clientKey)).Err()
}

func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		v.redis.Expire(ctx, key, v.window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = v.window
	}
	return int(count), time.Now().Add(ttl), nil
}
