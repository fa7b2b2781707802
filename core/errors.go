package session

import "errors"

var (
	// ErrSwitchInProgress rejects a camera switch while one is already
	// running; the call is a user-visible no-op.
	ErrSwitchInProgress = errors.New("session: camera switch already in progress")

	// ErrNoActiveVideo is returned by frame capture when no media handle
	// is active or the first frame has not been decoded yet.
	ErrNoActiveVideo = errors.New("session: no active video")
)
