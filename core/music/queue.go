package music

import (
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// guildQueue is the live playback state of one guild. It is only touched from
// the guild's executor goroutine.
type guildQueue struct {
	guildID        string
	nodeName       string
	player         Player
	voiceChannelID string
	textChannelID  string

	tracks    []model.Track
	current   *model.Track
	playing   bool
	paused    bool
	startedAt time.Time

	volume          int
	loopMode        model.LoopMode
	autoQueue       bool
	autoLeave       bool
	autoPause       bool
	twentyFourSeven bool

	nowPlayingMessageID string
	recent              *recentSet
	embedColor          int
	iconURL             string

	// generation increments on every track start and on teardown; listeners
	// carry the generation they were installed for.
	generation uint64
}

// ========== Pure track list operations ==========

// moveTrack relocates the track at 1-based from to 1-based to.
func moveTrack(tracks []model.Track, from, to int) ([]model.Track, error) {
	if err := checkPosition(from, len(tracks)); err != nil {
		return tracks, err
	}
	if err := checkPosition(to, len(tracks)); err != nil {
		return tracks, err
	}
	if from == to {
		return tracks, nil
	}

	t := tracks[from-1]
	out := make([]model.Track, 0, len(tracks))
	out = append(out, tracks[:from-1]...)
	out = append(out, tracks[from:]...)

	out = append(out, model.Track{})
	copy(out[to:], out[to-1:])
	out[to-1] = t
	return out, nil
}

// removeTrack deletes and returns the track at 1-based pos.
func removeTrack(tracks []model.Track, pos int) ([]model.Track, model.Track, error) {
	if len(tracks) == 0 {
		return tracks, model.Track{}, ErrQueueEmpty
	}
	if err := checkPosition(pos, len(tracks)); err != nil {
		return tracks, model.Track{}, err
	}

	removed := tracks[pos-1]
	out := make([]model.Track, 0, len(tracks)-1)
	out = append(out, tracks[:pos-1]...)
	out = append(out, tracks[pos:]...)
	return out, removed, nil
}

// dropBefore discards every track ahead of 1-based pos.
func dropBefore(tracks []model.Track, pos int) ([]model.Track, error) {
	if err := checkPosition(pos, len(tracks)); err != nil {
		return tracks, err
	}
	out := make([]model.Track, len(tracks)-(pos-1))
	copy(out, tracks[pos-1:])
	return out, nil
}

// shuffleTracks applies a Fisher-Yates permutation in place. intn(n) must
// return a uniform value in [0, n).
func shuffleTracks(tracks []model.Track, intn func(n int) int) {
	for i := len(tracks) - 1; i > 0; i-- {
		j := intn(i + 1)
		tracks[i], tracks[j] = tracks[j], tracks[i]
	}
}
