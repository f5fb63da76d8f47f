package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"driver-settlement-engine/internal/core/ports"
	"driver-settlement-engine/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNew_InvalidSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := New(mocks.NewMockSweepService(ctrl), "every five minutes", time.Minute, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_FiveFieldScheduleRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := New(mocks.NewMockSweepService(ctrl), "*/5 * * * *", time.Minute, zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduler_RunsSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	sweep := mocks.NewMockSweepService(ctrl)

	ran := make(chan struct{}, 1)
	sweep.EXPECT().Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) (*ports.SweepReport, error) {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			select {
			case ran <- struct{}{}:
			default:
			}
			return &ports.SweepReport{Scanned: 1, Settled: 1}, nil
		}).MinTimes(1)

	s, err := New(sweep, "* * * * * *", 5*time.Second, zerolog.Nop())
	require.NoError(t, err)
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("sweep did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_RunSweepErrorIsLogged(t *testing.T) {
	ctrl := gomock.NewController(t)
	sweep := mocks.NewMockSweepService(ctrl)
	sweep.EXPECT().Run(gomock.Any()).Return(nil, errors.New("db down"))

	s, err := New(sweep, "0 */5 * * * *", 0, zerolog.Nop())
	require.NoError(t, err)
	s.runSweep()
}

func TestScheduler_Next(t *testing.T) {
	ctrl := gomock.NewController(t)
	s, err := New(mocks.NewMockSweepService(ctrl), "0 */5 * * * *", time.Minute, zerolog.Nop())
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background()) //nolint:errcheck

	next := s.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 0, next.Second())
	assert.Equal(t, 0, next.Minute()%5)
	assert.Equal(t, time.UTC, next.Location())
}
