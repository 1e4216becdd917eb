package node

import "fmt"

// Phase tags the lifecycle phase a context call belongs to. Slot access
// legality is checked against the phase and the slot's declared role.
type Phase uint8

const (
	PhaseSetup Phase = iota
	PhaseCompile
	PhaseExecute
	PhaseCleanup
)

// String returns the lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseCompile:
		return "compile"
	case PhaseExecute:
		return "execute"
	case PhaseCleanup:
		return "cleanup"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// State is the lifecycle state of a node instance.
type State uint8

const (
	Uninitialized State = iota
	SetupDone
	CompileDone
	ExecuteDone
	CleanedUp
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SetupDone:
		return "setup_done"
	case CompileDone:
		return "compile_done"
	case ExecuteDone:
		return "execute_done"
	case CleanedUp:
		return "cleaned_up"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}
