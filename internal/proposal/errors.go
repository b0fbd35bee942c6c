package proposal

import "errors"

var (
	// ErrConfiguration means the screen cannot start: no modules were
	// configured or available for the requested stage/mode/kind.
	ErrConfiguration = errors.New("proposal: configuration error")
	// ErrModuleUnavailable marks a module that declined to describe itself.
	ErrModuleUnavailable = errors.New("proposal: module unavailable")
	// ErrDuplicateLink marks a hyperlink id registered by more than one
	// module. It is reported, the later module keeps the link.
	ErrDuplicateLink = errors.New("proposal: duplicate link")
	// ErrBlocked is returned when proceeding is refused by a blocker.
	ErrBlocked = errors.New("proposal: blocked by unresolved problems")
	// ErrSessionClosed is returned for actions after a terminal transition.
	ErrSessionClosed = errors.New("proposal: session closed")
	// ErrUnknownLink is returned for hyperlinks no module registered.
	ErrUnknownLink = errors.New("proposal: unknown link")
	// ErrLocked is returned when a locked module is activated.
	ErrLocked = errors.New("proposal: module is locked")
	// ErrUnknownTab is returned for out of range tab selections.
	ErrUnknownTab = errors.New("proposal: unknown tab")
	// ErrSkipDisabled is returned when the screen does not allow skipping.
	ErrSkipDisabled = errors.New("proposal: skipping is disabled")
	// ErrConfirmationRequired is returned for unconfirmed aborts.
	ErrConfirmationRequired = errors.New("proposal: confirmation required")
	// ErrWriteFailed summarizes a write phase with at least one failure.
	ErrWriteFailed = errors.New("proposal: write failed")
)
