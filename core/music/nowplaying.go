package music

import (
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// Control IDs attached to now-playing messages.
const (
	ControlPause   = "music:pause"
	ControlSkip    = "music:skip"
	ControlStop    = "music:stop"
	ControlLoop    = "music:loop"
	ControlShuffle = "music:shuffle"
)

// Control is one interactive button on the now-playing message.
type Control struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// NowPlaying is the data behind a now-playing message. Rendering it is up to
// the chat surface.
type NowPlaying struct {
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	URI         string         `json:"uri,omitempty"`
	ArtworkURL  string         `json:"artworkUrl,omitempty"`
	Duration    time.Duration  `json:"duration"`
	IsStream    bool           `json:"isStream"`
	RequesterID string         `json:"requesterId"`
	Volume      int            `json:"volume"`
	LoopMode    model.LoopMode `json:"loopMode"`
	Paused      bool           `json:"paused"`
	QueueLength int            `json:"queueLength"`
	Color       int            `json:"color"`
	IconURL     string         `json:"iconUrl,omitempty"`
	Controls    []Control      `json:"controls"`
}

func renderNowPlaying(track model.Track, q *guildQueue) NowPlaying {
	pauseLabel := "Pause"
	if q.paused {
		pauseLabel = "Resume"
	}

	return NowPlaying{
		Title:       track.Info.Title,
		Author:      track.Info.Author,
		URI:         track.Info.URI,
		ArtworkURL:  track.Info.ArtworkURL,
		Duration:    track.Info.Duration(),
		IsStream:    track.Info.IsStream,
		RequesterID: track.RequesterID(),
		Volume:      q.volume,
		LoopMode:    q.loopMode,
		Paused:      q.paused,
		QueueLength: len(q.tracks),
		Color:       q.embedColor,
		IconURL:     q.iconURL,
		Controls: []Control{
			{ID: ControlPause, Label: pauseLabel},
			{ID: ControlSkip, Label: "Skip"},
			{ID: ControlStop, Label: "Stop"},
			{ID: ControlLoop, Label: "Loop: " + string(q.loopMode)},
			{ID: ControlShuffle, Label: "Shuffle", Disabled: len(q.tracks) < 2},
		},
	}
}
