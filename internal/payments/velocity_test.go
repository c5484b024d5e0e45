package payments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestVelocityChecker_CheckInitialize(t *testing.T) {
	_, client := setupTestRedis(t)
	checker := NewVelocityChecker(client, 3, time.Hour, nil)
	ctx := context.Background()

	tests := []struct {
		name        string
		visitor     string
		attempts    int
		wantAllowed bool
	}{
		{name: "first attempt allowed", visitor: "v1", attempts: 1, wantAllowed: true},
		{name: "at limit allowed", visitor: "v2", attempts: 3, wantAllowed: true},
		{name: "over limit blocked", visitor: "v3", attempts: 4, wantAllowed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res *VelocityResult
			for i := 0; i < tt.attempts; i++ {
				res = checker.CheckInitialize(ctx, tt.visitor)
			}
			assert.Equal(t, tt.wantAllowed, res.Allowed)
			assert.Equal(t, tt.attempts, res.CurrentCount)
			assert.Equal(t, 3, res.MaxAllowed)
		})
	}
}

func TestVelocityChecker_WindowExpires(t *testing.T) {
	mr, client := setupTestRedis(t)
	checker := NewVelocityChecker(client, 1, time.Minute, nil)
	ctx := context.Background()

	assert.True(t, checker.CheckInitialize(ctx, "v").Allowed)
	assert.False(t, checker.CheckInitialize(ctx, "v").Allowed)

	mr.FastForward(2 * time.Minute)
	assert.True(t, checker.CheckInitialize(ctx, "v").Allowed)
}

func TestVelocityChecker_Reset(t *testing.T) {
	_, client := setupTestRedis(t)
	checker := NewVelocityChecker(client, 1, time.Hour, nil)
	ctx := context.Background()

	checker.CheckInitialize(ctx, "v")
	require.NoError(t, checker.Reset(ctx, "v"))
	assert.True(t, checker.CheckInitialize(ctx, "v").Allowed)
}

func TestVelocityChecker_FailsOpen(t *testing.T) {
	mr, client := setupTestRedis(t)
	checker := NewVelocityChecker(client, 1, time.Hour, nil)
	mr.Close()

	res := checker.CheckInitialize(context.Background(), "v")
	assert.True(t, res.Allowed)
	assert.Equal(t, "velocity check unavailable", res.Message)
}

func TestVelocityChecker_DisabledOrNil(t *testing.T) {
	var nilChecker *VelocityChecker
	assert.True(t, nilChecker.CheckInitialize(context.Background(), "v").Allowed)

	_, client := setupTestRedis(t)
	off := NewVelocityChecker(client, 0, time.Hour, nil)
	for i := 0; i < 10; i++ {
		assert.True(t, off.CheckInitialize(context.Background(), "v").Allowed)
	}
}
