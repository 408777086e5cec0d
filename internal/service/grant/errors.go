package grant

// ErrorKind is the closed set of grant-level failures. The HTTP layer maps
// each kind to exactly one protocol code and status; the switch there must
// stay exhaustive.
type ErrorKind int

const (
	ErrorInvalidRequest ErrorKind = iota
	ErrorInvalidContinuation
	ErrorInvalidInteraction
	ErrorUnknownInteraction
	ErrorUserDenied
	ErrorRequestDenied
	ErrorTooFast
)

// Error is a grant-level failure with a caller-facing description.
type Error struct {
	Kind        ErrorKind
	Description string
}

func (e *Error) Error() string {
	return e.Description
}

func newError(kind ErrorKind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}
