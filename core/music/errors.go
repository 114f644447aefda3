package music

import (
	"errors"
	"fmt"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
)

// Engine errors. Command surfaces translate these with UserMessage.
var (
	ErrNoNodeAvailable   = lavalink.ErrNoNodeAvailable
	ErrNotInVoiceChannel = errors.New("user is not in a voice channel")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNoValidTracks     = errors.New("no playable tracks")
	ErrQueueNotFound     = errors.New("queue not found")
	ErrQueueEmpty        = errors.New("queue is empty")
	ErrNothingPlaying    = errors.New("nothing is playing")
	ErrNothingToShuffle  = errors.New("not enough tracks to shuffle")
	ErrInvalidPosition   = errors.New("invalid position")
	ErrNotSeekable       = errors.New("track is not seekable")
)

// PositionError is an out-of-range 1-based queue position. It matches
// ErrInvalidPosition.
type PositionError struct {
	Position int
	Max      int
}

func (e *PositionError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("position %d is out of range: queue is empty", e.Position)
	}
	return fmt.Sprintf("position %d is out of range (1-%d)", e.Position, e.Max)
}

func (e *PositionError) Is(target error) bool {
	return target == ErrInvalidPosition
}

func checkPosition(pos, max int) error {
	if pos < 1 || pos > max {
		return &PositionError{Position: pos, Max: max}
	}
	return nil
}

// UserMessage returns a short, user-facing description of err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var posErr *PositionError
	switch {
	case errors.As(err, &posErr):
		if posErr.Max == 0 {
			return "The queue is empty."
		}
		return fmt.Sprintf("Position must be between 1 and %d.", posErr.Max)
	case errors.Is(err, ErrNoNodeAvailable):
		return "No audio node is available right now, try again in a moment."
	case errors.Is(err, ErrNotInVoiceChannel):
		return "You need to be in a voice channel."
	case errors.Is(err, ErrNoValidTracks):
		return "Nothing playable was found."
	case errors.Is(err, ErrQueueNotFound):
		return "There is no active queue in this server."
	case errors.Is(err, ErrQueueEmpty):
		return "The queue is empty."
	case errors.Is(err, ErrNothingPlaying):
		return "Nothing is playing."
	case errors.Is(err, ErrNothingToShuffle):
		return "At least two queued tracks are needed to shuffle."
	case errors.Is(err, ErrNotSeekable):
		return "This track cannot be seeked."
	case errors.Is(err, ErrInvalidRequest):
		return "Invalid request."
	}
	return "Something went wrong."
}
