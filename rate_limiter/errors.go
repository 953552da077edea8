package rate_limiter

import "errors"

var (
	// ErrInvalidParameter marks caller-supplied parameters outside the accepted
	// domain. Validation happens locally, before any store round trip.
	ErrInvalidParameter = errors.New("invalid rate limit parameter")

	// ErrUnexpectedReply marks a script reply that is neither of the two
	// decision sentinels. It signals a broken script deployment, not a denial.
	ErrUnexpectedReply = errors.New("unexpected rate limit script reply")
)
