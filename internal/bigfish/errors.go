package bigfish

import "fmt"

// ProtocolError reports a response that parsed but lacked the structure the
// caller needs, such as a missing gameInfo block or an XML-RPC fault.
type ProtocolError struct {
	// Op is the call that failed: "catalog" or "gameinfo".
	Op string

	// WrapID is set for game info lookups.
	WrapID string

	// Reason describes what was missing.
	Reason string

	// Err is the underlying decode error, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	msg := e.Op + ": " + e.Reason
	if e.WrapID != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.WrapID, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
