package deploy

// State is the lifecycle position of an Operation.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateExecuted
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateExecuted:
		return "executed"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateUnconfigured:
		return to == StateConfigured
	case StateConfigured:
		// reconfiguration before execution replaces the target
		return to == StateConfigured || to == StateExecuted
	case StateExecuted:
		return to == StateSucceeded || to == StateFailed
	default:
		return false
	}
}
