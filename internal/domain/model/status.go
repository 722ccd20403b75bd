package model

// Flag is a tri-state boolean. Unknown is distinct from False: it means the
// status could not be established, not that the answer was no.
type Flag int8

const (
	FlagUnknown Flag = iota
	FlagFalse
	FlagTrue
)

// FlagOf converts a known boolean into a Flag.
func FlagOf(v bool) Flag {
	if v {
		return FlagTrue
	}
	return FlagFalse
}

func (f Flag) IsTrue() bool  { return f == FlagTrue }
func (f Flag) IsKnown() bool { return f != FlagUnknown }

// Bool returns the boolean value and whether it is known.
func (f Flag) Bool() (value bool, known bool) {
	switch f {
	case FlagTrue:
		return true, true
	case FlagFalse:
		return false, true
	default:
		return false, false
	}
}

func (f Flag) String() string {
	switch f {
	case FlagTrue:
		return "true"
	case FlagFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Status holds the revert flags of a single revision.
type Status struct {
	Reverting Flag
	Reverted  Flag
}

// UnknownStatus is reported when no valid window could be built.
func UnknownStatus() Status {
	return Status{Reverting: FlagUnknown, Reverted: FlagUnknown}
}

// StatusRecord is one output row of the revert-status utility.
type StatusRecord struct {
	RevID     int64
	Reverting Flag
	Reverted  Flag
	Score     *float64 // vandalism likelihood, only set when Reverted is true
}
