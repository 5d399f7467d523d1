package runner

import "fmt"

// State is a phase of the load lifecycle.
//
//	Idle -> Preloading -> Populating -> Postloading -> Ready
//	Ready -> Repopulating -> Ready      (repeating mode only)
//	Preloading..Repopulating -> Failed  (InitialLoad may run again)
//	Failed -> Repopulating              (a later tick may recover)
//	any -> Stopped
type State int32

const (
	StateIdle State = iota
	StatePreloading
	StatePopulating
	StatePostloading
	StateReady
	StateRepopulating
	StateStopped
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StatePreloading:   "preloading",
	StatePopulating:   "populating",
	StatePostloading:  "postloading",
	StateReady:        "ready",
	StateRepopulating: "repopulating",
	StateStopped:      "stopped",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Mode selects whether loaders run once or on every scheduler tick.
type Mode int

const (
	// ModeSingle loads once at startup; scheduler ticks are ignored.
	ModeSingle Mode = iota
	// ModeRepeating reloads on every scheduler tick.
	ModeRepeating
)

func (m Mode) String() string {
	if m == ModeRepeating {
		return "repeating"
	}
	return "single"
}
