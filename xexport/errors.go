package xexport

import "errors"

// Error kinds. Parse errors wrap one of these; use errors.Is to classify.
var (
	// ErrUnexpectedToken : a token's name or argument shape did not match
	// what the grammar expects at the current position.
	ErrUnexpectedToken = errors.New("unexpected token")

	// ErrStructuralMismatch : a declared index (bone, part, material) does
	// not equal its position in the stream.
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrOutOfRange : a weight's bone index is outside the skeleton, or a
	// weight value is negative.
	ErrOutOfRange = errors.New("out of range")

	// ErrMissingDependency : animation parsing attempted without a skeleton.
	ErrMissingDependency = errors.New("missing dependency")
)
