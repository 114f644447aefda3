package lavalink

import "encoding/json"

// EndReason is why a track stopped playing.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// Exception is the detail of a TrackExceptionEvent or TrackStuckEvent.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// Listener is the end/exception pair attached to a player. A player holds at
// most one Listener; setting a new one replaces the old.
type Listener struct {
	OnEnd       func(track Track, reason EndReason)
	OnException func(track Track, exc Exception)
}

// websocket payloads

type wsMessage struct {
	Op        string          `json:"op"`
	Type      string          `json:"type,omitempty"`
	GuildID   string          `json:"guildId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Resumed   bool            `json:"resumed,omitempty"`
	Players   int             `json:"players,omitempty"`
	Playing   int             `json:"playingPlayers,omitempty"`
	Track     *Track          `json:"track,omitempty"`
	Reason    EndReason       `json:"reason,omitempty"`
	Exception *Exception      `json:"exception,omitempty"`
	Threshold int64           `json:"thresholdMs,omitempty"`
	Code      int             `json:"code,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
}

type playerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}
