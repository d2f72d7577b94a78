package status

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_HealthyByDefault(t *testing.T) {
	start := time.Now().Add(-time.Second)
	s := New(start)
	snap := s.Snapshot(time.Now())
	require.Equal(t, Healthy, snap.Level())
}

func TestSnapshot_WarningAfterSlowIncompleteSync(t *testing.T) {
	start := time.Now().Add(-400 * time.Second)
	s := New(start)
	s.SetInitialSyncStarted()
	snap := s.Snapshot(time.Now())
	require.Equal(t, Warning, snap.Level())
}

func TestSnapshot_DegradedOnInitialSyncError(t *testing.T) {
	s := New(time.Now())
	s.SetInitialSyncStarted()
	s.SetInitialSyncError(errors.New("source unreachable"))
	snap := s.Snapshot(time.Now())
	require.Equal(t, Degraded, snap.Level())
	require.Equal(t, "source unreachable", snap.InitialSyncError)
}

func TestSnapshot_HealthyOnceCompleted(t *testing.T) {
	start := time.Now().Add(-400 * time.Second)
	s := New(start)
	s.SetInitialSyncStarted()
	s.SetInitialSyncCompleted()
	snap := s.Snapshot(time.Now())
	require.Equal(t, Healthy, snap.Level())
}
