package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = 5 * time.Millisecond
	cfg.MaxDelay = 20 * time.Millisecond
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 1*time.Second, cfg.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Empty(t, cfg.RetryableErrors)
}

func TestDo_RetrySuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_MaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		attempts++
		return errors.New("persistent error")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "persistent error")
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	sentinel := errors.New("malformed event")
	attempts := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		attempts++
		return Permanent(sentinel)
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, sentinel, err, "permanent wrapper must be removed")
}

func TestDo_NonRetryableError(t *testing.T) {
	cfg := fastConfig(5)
	cfg.RetryableErrors = []string{"connection refused"}

	attempts := 0
	err := Do(context.Background(), cfg, func() error {
		attempts++
		return errors.New("invalid credentials")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.InitialDelay = 100 * time.Millisecond

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := Do(ctx, cfg, func() error {
		attempts++
		return errors.New("temporary error")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, attempts, 10)
}

func TestDo_ZeroMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "MaxAttempts must be greater than 0")
	assert.Equal(t, 0, attempts)
}

func TestDoWithResult_RetrySuccess(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, errors.New("database is locked")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, attempts)
}

func TestCalculateDelay(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2.0}

	assert.Equal(t, 1*time.Second, calculateDelay(-1, cfg))
	assert.Equal(t, 1*time.Second, calculateDelay(0, cfg))
	assert.Equal(t, 4*time.Second, calculateDelay(2, cfg))
	assert.Equal(t, 10*time.Second, calculateDelay(6, cfg))
}

func TestAddJitter(t *testing.T) {
	delay := time.Second
	jittered := addJitter(delay)

	assert.GreaterOrEqual(t, jittered, delay-100*time.Millisecond)
	assert.LessOrEqual(t, jittered, delay+100*time.Millisecond)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		retryableErrs []string
		expected      bool
	}{
		{name: "nil error", err: nil, retryableErrs: []string{"x"}, expected: false},
		{name: "empty pattern list", err: errors.New("any"), expected: true},
		{name: "matching pattern", err: errors.New("dial tcp: connection refused"), retryableErrs: []string{"connection refused"}, expected: true},
		{name: "case insensitive", err: errors.New("DATABASE IS LOCKED"), retryableErrs: []string{"database is locked"}, expected: true},
		{name: "non matching", err: errors.New("invalid credentials"), retryableErrs: []string{"connection refused"}, expected: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryableError(tt.err, Config{RetryableErrors: tt.retryableErrs}))
		})
	}
}

func TestStoreConfig(t *testing.T) {
	cfg := StoreConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Contains(t, cfg.RetryableErrors, "database is locked")
	assert.Contains(t, cfg.RetryableErrors, "deadlock detected")

	pg := PostgresConfig()
	assert.Equal(t, 5, pg.MaxAttempts)
	assert.Contains(t, pg.RetryableErrors, "connection refused")
}
