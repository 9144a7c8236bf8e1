package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRunFiresOnStartAndOnInterval(t *testing.T) {
	s := New(Options{Interval: 20 * time.Millisecond, RunOnStart: true}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	var ticks int32
	err := s.Run(ctx, func(context.Context, time.Time) error {
		atomic.AddInt32(&ticks, 1)
		return errors.New("tick errors are logged, not fatal")
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&ticks), int32(3))
}

func TestNextTickAligned(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	now := time.Date(2024, time.March, 4, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.March, 4, 11, 0, 0, 0, time.UTC), s.nextTick(now))
	assert.Equal(t, time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC), s.tickStart(now))

	exact := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, exact.Add(time.Hour), s.nextTick(exact))
}

func TestNewRejectsZeroInterval(t *testing.T) {
	assert.Panics(t, func() { New(Options{}, zerolog.Nop()) })
}
