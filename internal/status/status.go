// Package status tracks process lifecycle state for the /health and
// /status endpoints (§4.9, §6). Fields are updated only by their
// designated writer and read without a lock: each is a single atomic
// value, so readers may observe a recent-but-stale snapshot, which the
// specification accepts for status reporting (§5).
package status

import (
	"sync/atomic"
	"time"
)

// Level is the overall health classification reported at /status.
type Level string

const (
	Healthy  Level = "Healthy"
	Warning  Level = "Warning"
	Degraded Level = "Degraded"
)

// degradedWarnAfter is how long the engine tolerates an incomplete
// initial sync before reporting Warning (§6).
const degradedWarnAfter = 300 * time.Second

// ApplicationState is the single source of truth for lifecycle status,
// set via explicit setters rather than free-floating booleans scattered
// across goroutines.
type ApplicationState struct {
	startupTime time.Time

	initialSyncStarted   atomic.Bool
	initialSyncCompleted atomic.Bool
	initialSyncError     atomic.Value // string

	messageBusEnabled   atomic.Bool
	messageBusConnected atomic.Bool
}

// New returns a fresh ApplicationState stamped with the given start time.
// The caller supplies startTime since Date.Now()-style calls are avoided
// in code paths exercised by deterministic tests.
func New(startTime time.Time) *ApplicationState {
	s := &ApplicationState{startupTime: startTime}
	s.initialSyncError.Store("")
	return s
}

func (s *ApplicationState) SetInitialSyncStarted()   { s.initialSyncStarted.Store(true) }
func (s *ApplicationState) SetInitialSyncCompleted() { s.initialSyncCompleted.Store(true) }

func (s *ApplicationState) SetInitialSyncError(err error) {
	if err == nil {
		s.initialSyncError.Store("")
		return
	}
	s.initialSyncError.Store(err.Error())
}

func (s *ApplicationState) SetMessageBusEnabled(enabled bool)     { s.messageBusEnabled.Store(enabled) }
func (s *ApplicationState) SetMessageBusConnected(connected bool) { s.messageBusConnected.Store(connected) }

// Snapshot is an immutable read of ApplicationState at one instant, used
// to render both /health and /status.
type Snapshot struct {
	UptimeSeconds        float64
	InitialSyncStarted   bool
	InitialSyncCompleted bool
	InitialSyncError     string
	MessageBusEnabled    bool
	MessageBusConnected  bool
}

func (s *ApplicationState) Snapshot(now time.Time) Snapshot {
	errStr, _ := s.initialSyncError.Load().(string)
	return Snapshot{
		UptimeSeconds:        now.Sub(s.startupTime).Seconds(),
		InitialSyncStarted:   s.initialSyncStarted.Load(),
		InitialSyncCompleted: s.initialSyncCompleted.Load(),
		InitialSyncError:     errStr,
		MessageBusEnabled:    s.messageBusEnabled.Load(),
		MessageBusConnected:  s.messageBusConnected.Load(),
	}
}

// Level classifies the snapshot per §6: Degraded if the initial sync
// recorded an error; Warning if it hasn't completed after
// degradedWarnAfter; Healthy otherwise.
func (snap Snapshot) Level() Level {
	if snap.InitialSyncError != "" {
		return Degraded
	}
	if !snap.InitialSyncCompleted && snap.UptimeSeconds > degradedWarnAfter.Seconds() {
		return Warning
	}
	return Healthy
}
