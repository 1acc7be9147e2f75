package sentiment

import "errors"

// Sentinel kinds for classifier errors.
var (
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrBadResponse           = errors.New("malformed classifier response")
)
