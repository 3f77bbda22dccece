package chronosched

import "errors"

// The error taxonomy from §7. Each sentinel the package returns is
// wrapped with fmt.Errorf("...: %w", ...) at the call site so errors.Is
// still matches while the message carries the specific detail.
var (
	// ErrConfig covers malformed JSON, a missing required field, or an
	// enum with no safe default (rate == 0, addRate <= 0 for
	// weekly/monthly rules). Construction fails; the caller gets a
	// false/nil return and the rest of a profile/folder load continues.
	ErrConfig = errors.New("chronosched: config error")

	// ErrSchedule covers a one-shot (kind == None) target time that is
	// already in the past at construction time: the event is rejected,
	// not retroactively fired.
	ErrSchedule = errors.New("chronosched: schedule error")

	// ErrDuplicateName names an event or profile name collision. No
	// function in this package returns it: AddEvent and AddProfile
	// report a collision as a false return.
	ErrDuplicateName = errors.New("chronosched: duplicate name")

	// ErrNotFound names a lookup of a profile or event name that doesn't
	// exist. No function in this package returns it: lookups and
	// removals report a missing name as a false return.
	ErrNotFound = errors.New("chronosched: not found")
)
