// Package clamshell holds the lid/display data model and the pure decision
// that maps a sample of both to the desired sleep behavior.
package clamshell

// LidState is the open/closed status of the laptop lid.
type LidState int

const (
	LidUnknown LidState = iota
	LidOpen
	LidClosed
)

func (l LidState) String() string {
	switch l {
	case LidOpen:
		return "open"
	case LidClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DisplayState reports whether an external display is attached.
type DisplayState int

const (
	DisplayUnknown DisplayState = iota
	ExternalAbsent
	ExternalAttached
)

func (d DisplayState) String() string {
	switch d {
	case ExternalAbsent:
		return "absent"
	case ExternalAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// Mode is the desired state of the sleep inhibitor.
type Mode int

const (
	Allow Mode = iota
	Inhibit
)

func (m Mode) String() string {
	if m == Inhibit {
		return "inhibit"
	}
	return "allow"
}

// Sample is one reading of the lid and display topology.
type Sample struct {
	Lid              LidState
	Display          DisplayState
	ExternalDisplays int
}

// Mode returns the decision for this sample.
func (s Sample) Mode() Mode {
	return Decide(s.Lid, s.Display)
}

// Decide returns Inhibit iff the lid is closed and an external display is
// attached. Unknown inputs never inhibit.
func Decide(lid LidState, display DisplayState) Mode {
	if lid == LidClosed && display == ExternalAttached {
		return Inhibit
	}
	return Allow
}

// DisplayFromCount maps a count of external displays to a DisplayState.
func DisplayFromCount(n int) DisplayState {
	if n > 0 {
		return ExternalAttached
	}
	return ExternalAbsent
}
