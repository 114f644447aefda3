package music

import (
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// Snapshot is an immutable copy of a guild's queue, published after every
// engine step. Readers never observe a half-applied operation.
type Snapshot struct {
	GuildID         string         `json:"guildId"`
	NodeName        string         `json:"nodeName"`
	VoiceChannelID  string         `json:"voiceChannelId"`
	TextChannelID   string         `json:"textChannelId"`
	Current         *model.Track   `json:"current"`
	Tracks          []model.Track  `json:"tracks"`
	Playing         bool           `json:"playing"`
	Paused          bool           `json:"paused"`
	StartedAt       time.Time      `json:"startedAt"`
	Volume          int            `json:"volume"`
	LoopMode        model.LoopMode `json:"loopMode"`
	AutoQueue       bool           `json:"autoQueue"`
	AutoLeave       bool           `json:"autoLeave"`
	AutoPause       bool           `json:"autoPause"`
	TwentyFourSeven bool           `json:"twentyFourSeven"`
	RecentCount     int            `json:"recentCount"`
	EmbedColor      int            `json:"embedColor"`
	IconURL         string         `json:"iconUrl,omitempty"`
}

func (q *guildQueue) snapshot() *Snapshot {
	s := &Snapshot{
		GuildID:         q.guildID,
		NodeName:        q.nodeName,
		VoiceChannelID:  q.voiceChannelID,
		TextChannelID:   q.textChannelID,
		Tracks:          make([]model.Track, len(q.tracks)),
		Playing:         q.playing,
		Paused:          q.paused,
		StartedAt:       q.startedAt,
		Volume:          q.volume,
		LoopMode:        q.loopMode,
		AutoQueue:       q.autoQueue,
		AutoLeave:       q.autoLeave,
		AutoPause:       q.autoPause,
		TwentyFourSeven: q.twentyFourSeven,
		RecentCount:     q.recent.Len(),
		EmbedColor:      q.embedColor,
		IconURL:         q.iconURL,
	}
	copy(s.Tracks, q.tracks)
	if q.current != nil {
		cur := *q.current
		s.Current = &cur
	}
	return s
}

// TotalDuration sums the lengths of the queued tracks, streams excluded.
func (s *Snapshot) TotalDuration() time.Duration {
	var total time.Duration
	for _, t := range s.Tracks {
		if !t.Info.IsStream {
			total += t.Info.Duration()
		}
	}
	return total
}
