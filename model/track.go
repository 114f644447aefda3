package model

import "time"

// TrackInfo is the provider metadata carried alongside an encoded track.
// Field names follow the audio node's JSON so it can be decoded directly.
// Length is in milliseconds and Requester is the Discord user ID set by the
// normalizer.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	SourceName string `json:"sourceName,omitempty"`
	Requester  string `json:"requester,omitempty"`
}

// Duration returns the track length as a time.Duration.
func (i TrackInfo) Duration() time.Duration {
	return time.Duration(i.Length) * time.Millisecond
}

// Track is the canonical playable unit. Encoded is opaque and only round-tripped
// back to the audio node.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// RequesterID returns the user who queued the track.
func (t Track) RequesterID() string {
	return t.Info.Requester
}
