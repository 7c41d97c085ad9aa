package server

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/Seednode/apologies/protocol"
)

// failure carries a typed protocol failure through handler returns so the
// dispatch layer can turn it into a single REQUEST_FAILED event.
type failure struct {
	reason  protocol.FailureReason
	comment string
}

func (f *failure) Error() string {
	return fmt.Sprintf("%s: %s", f.reason, f.comment)
}

// fail builds a failure carrying the reason's stock comment.
func fail(reason protocol.FailureReason) error {
	return &failure{reason: reason, comment: reason.Comment()}
}

// failf builds a failure with a formatted comment.
func failf(reason protocol.FailureReason, format string, args ...any) error {
	return &failure{reason: reason, comment: fmt.Sprintf(format, args...)}
}

// engineFault wraps an unexpected rules-engine error. Unlike a failure it
// does not map onto a REQUEST_FAILED reason; the coordinator cancels the
// affected game instead.
type engineFault struct {
	err error
}

func (e *engineFault) Error() string {
	return fmt.Sprintf("engine failure: %v", e.err)
}

func (e *engineFault) Unwrap() error {
	return e.err
}

// failureOf maps any handler error onto the reason and comment for one
// REQUEST_FAILED event. Unrecognized errors are reported as internal so
// that no Go error text leaks onto the wire.
func failureOf(err error) (protocol.FailureReason, string) {
	var f *failure
	if errors.As(err, &f) {
		return f.reason, f.comment
	}

	var r *protocol.RequestError
	if errors.As(err, &r) {
		return protocol.InvalidRequest, r.Detail
	}

	return protocol.InternalError, protocol.InternalError.Comment()
}

var playerIDField = regexp.MustCompile(`"player_id"\s*:\s*"[^"]*"`)

// maskPlayerIDs hides credentials when a raw frame is logged.
func maskPlayerIDs(frame []byte) string {
	return playerIDField.ReplaceAllString(string(frame), `"player_id":"<masked>"`)
}
