package retrycall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errFlaky = errors.New("connection reset")

// sleepRecorder captures waits instead of sleeping.
type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestCaller(t *testing.T, maxRetries int) (*Caller[string], *sleepRecorder) {
	rec := new(sleepRecorder)
	return &Caller[string]{
		Start:      10 * time.Millisecond,
		MaxWait:    100 * time.Millisecond,
		MaxRetries: maxRetries,
		Log:        zaptest.NewLogger(t),
		sleep:      rec.sleep,
	}, rec
}

func TestCaller_Exhaustion(t *testing.T) {
	c, rec := newTestCaller(t, 3)
	var attempts int
	_, err := c.Run(context.Background(), func(context.Context) (string, error) {
		attempts++
		return "", errFlaky
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.NotErrorIs(t, err, errFlaky, "exhaustion must be distinct from the transient error")
	// First attempt plus three retries, no wait after the fatal one.
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
	}, rec.waits)
}

func TestCaller_WaitProgressionCapped(t *testing.T) {
	c, rec := newTestCaller(t, 0) // retry forever
	var attempts int
	result, err := c.Run(context.Background(), func(context.Context) (string, error) {
		attempts++
		if attempts <= 6 {
			return "", errFlaky
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	// Doubling waits capped at the maximum; the successful final attempt
	// still pauses once before the result is handed back.
	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		100 * time.Millisecond,
		100 * time.Millisecond,
		100 * time.Millisecond,
	}, rec.waits)
}

func TestCaller_SuccessStillWaitsOnce(t *testing.T) {
	c, rec := newTestCaller(t, 3)
	result, err := c.Run(context.Background(), func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, rec.waits)
}

func TestCaller_PermanentError(t *testing.T) {
	c, rec := newTestCaller(t, 0)
	errBad := errors.New("malformed request")
	var attempts int
	_, err := c.Run(context.Background(), func(context.Context) (string, error) {
		attempts++
		return "", backoff.Permanent(errBad)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.waits)
}

func TestCaller_ContextCanceledDuringWait(t *testing.T) {
	c := &Caller[string]{
		Start:   10 * time.Millisecond,
		MaxWait: 100 * time.Millisecond,
		Log:     zaptest.NewLogger(t),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Run(ctx, func(context.Context) (string, error) {
		return "", errFlaky
	})
	assert.ErrorIs(t, err, context.Canceled)
}
