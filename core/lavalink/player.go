package lavalink

import (
	"context"
	"sync"
	"time"
)

// Player controls playback for one guild on one node.
type Player struct {
	guildID string
	node    *Node

	mu        sync.Mutex
	listener  Listener
	position  int64
	sessionID string
	token     string
	endpoint  string

	voiceReady chan struct{}
	readyOnce  sync.Once
}

func newPlayer(guildID string, node *Node) *Player {
	return &Player{
		guildID:    guildID,
		node:       node,
		voiceReady: make(chan struct{}),
	}
}

// GuildID returns the guild this player belongs to.
func (pl *Player) GuildID() string {
	return pl.guildID
}

// NodeName returns the name of the node hosting this player.
func (pl *Player) NodeName() string {
	return pl.node.Name()
}

// PlayTrack starts encoded, replacing whatever is playing.
func (pl *Player) PlayTrack(ctx context.Context, encoded string) error {
	paused := false
	var position int64
	return pl.node.updatePlayer(ctx, pl.guildID, playerUpdate{
		Track:    &trackUpdate{Encoded: &encoded},
		Position: &position,
		Paused:   &paused,
	})
}

// StopTrack stops playback. The node reports the end with reason "stopped".
func (pl *Player) StopTrack(ctx context.Context) error {
	return pl.node.updatePlayer(ctx, pl.guildID, playerUpdate{
		Track: &trackUpdate{Encoded: nil},
	})
}

func (pl *Player) SetPaused(ctx context.Context, paused bool) error {
	return pl.node.updatePlayer(ctx, pl.guildID, playerUpdate{Paused: &paused})
}

func (pl *Player) SetVolume(ctx context.Context, volume int) error {
	return pl.node.updatePlayer(ctx, pl.guildID, playerUpdate{Volume: &volume})
}

// Seek moves the playhead of the current track.
func (pl *Player) Seek(ctx context.Context, position time.Duration) error {
	ms := position.Milliseconds()
	if err := pl.node.updatePlayer(ctx, pl.guildID, playerUpdate{Position: &ms}); err != nil {
		return err
	}
	pl.setPosition(ms)
	return nil
}

// SetListener attaches l, replacing any previous listener.
func (pl *Player) SetListener(l Listener) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.listener = l
}

// Position is the last playhead position reported by the node.
func (pl *Player) Position() time.Duration {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return time.Duration(pl.position) * time.Millisecond
}

func (pl *Player) currentListener() Listener {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.listener
}

func (pl *Player) setPosition(ms int64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.position = ms
}

// setVoiceSession stores the session ID and reports whether the voice state
// is complete and changed.
func (pl *Player) setVoiceSession(sessionID string) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if sessionID == pl.sessionID {
		return false
	}
	pl.sessionID = sessionID
	return pl.voiceCompleteLocked()
}

func (pl *Player) setVoiceServer(token, endpoint string) bool {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if token == pl.token && endpoint == pl.endpoint {
		return false
	}
	pl.token = token
	pl.endpoint = endpoint
	return pl.voiceCompleteLocked()
}

func (pl *Player) voiceCompleteLocked() bool {
	return pl.sessionID != "" && pl.token != "" && pl.endpoint != ""
}

func (pl *Player) voiceState() voiceUpdate {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return voiceUpdate{Token: pl.token, Endpoint: pl.endpoint, SessionID: pl.sessionID}
}

func (pl *Player) markVoiceReady() {
	pl.readyOnce.Do(func() { close(pl.voiceReady) })
}
