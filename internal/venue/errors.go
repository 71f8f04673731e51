package venue

import "errors"

// ErrKind classifies a venue-client failure the way the hot path needs to
// branch on: rate-limit pauses a loop, transient latches a degraded state,
// decode/precondition short-circuit one event, fatal aborts.
type ErrKind int

const (
	KindUnknown ErrKind = iota
	KindRateLimited
	KindTransient
	KindDecode
	KindPrecondition
	KindGateReject
	KindKillSwitch
	KindFatal
)

func (k ErrKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindDecode:
		return "decode"
	case KindPrecondition:
		return "precondition"
	case KindGateReject:
		return "gate_reject"
	case KindKillSwitch:
		return "kill_switch"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a venue-client failure tagged with a kind and the endpoint that
// produced it.
type Error struct {
	Kind     ErrKind
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	if e.Endpoint != "" {
		return e.Kind.String() + " (" + e.Endpoint + "): " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrKind, endpoint string, err error) *Error {
	return &Error{Kind: kind, Endpoint: endpoint, Err: err}
}

// KindOf extracts the ErrKind from an error produced by this package,
// defaulting to KindUnknown.
func KindOf(err error) ErrKind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnknown
}
