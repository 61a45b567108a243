package player

import "errors"

var (
	// ErrVolumeOutOfRange is returned for volume values outside [0,150].
	ErrVolumeOutOfRange = errors.New("volume out of range")

	// ErrInvalidTarget is returned when a skip lands outside the queue and
	// loop mode cannot wrap it back in.
	ErrInvalidTarget = errors.New("no track at target position")

	// ErrIndexOutOfRange is returned for queue edits with a bad index.
	ErrIndexOutOfRange = errors.New("queue index out of range")

	// ErrTrackInUse is returned when a queue edit targets the currently
	// playing index.
	ErrTrackInUse = errors.New("cannot edit the currently playing track")

	// ErrNoTrackPlaying is returned by operations that need an active track.
	ErrNoTrackPlaying = errors.New("no track is currently playing")

	// ErrSessionClosed is returned once a session has been stopped.
	ErrSessionClosed = errors.New("session is stopped")
)
