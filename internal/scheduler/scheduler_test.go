package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsInvalidCrontab(t *testing.T) {
	_, err := New("not a cron", func(ctx context.Context) error { return nil }, nil)
	require.Error(t, err)
}

func TestNew_AcceptsValidCrontab(t *testing.T) {
	s, err := New("*/15 * * * *", func(ctx context.Context) error { return nil }, nil)
	require.NoError(t, err)
	require.Equal(t, 1, s.JobsCount())
	require.False(t, s.Running())
}

func TestStartStop_TogglesRunning(t *testing.T) {
	s, err := New("*/15 * * * *", func(ctx context.Context) error { return nil }, nil)
	require.NoError(t, err)

	s.Start()
	require.True(t, s.Running())

	s.Stop()
	require.False(t, s.Running())
}
