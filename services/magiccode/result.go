package magiccode

// Result is the outcome of a verification attempt. Blocked outcomes
// and Invalid are ordinary values, not errors, so hosts can choose
// their own messaging without inspecting error chains. All mismatch
// reasons collapse into ResultInvalid so a caller cannot learn which
// field was wrong.
type Result string

const (
	ResultSuccess       Result = "success"
	ResultBlockedByIP   Result = "blocked_by_ip"
	ResultBlockedByUser Result = "blocked_by_user"
	ResultInvalid       Result = "invalid"
)

// Mode selects what a successful verification consumes.
type Mode int

const (
	// ModeLogin consumes the code's login eligibility. The code stays
	// valid for one operation-mode use, unless the operation is "login"
	// itself, in which case the code is fully revoked.
	ModeLogin Mode = iota + 1

	// ModeOperation revokes the code outright.
	ModeOperation
)

func (m Mode) String() string {
	switch m {
	case ModeLogin:
		return "login"
	case ModeOperation:
		return "operation"
	default:
		return "unknown"
	}
}
