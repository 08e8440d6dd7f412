package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, clients and the engine return
// these (optionally wrapped) so callers can branch with errors.Is.
//
// - ErrNotFound: entity does not exist in the store or upstream
// - ErrUnavailable: a downstream dependency is temporarily unreachable
// - ErrInvalidState: operation not allowed in the current state (e.g. already running)
// - ErrRejected: upstream accepted the request but reported it was not applied
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
	ErrRejected     = errors.New("rejected")
)
