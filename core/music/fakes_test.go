package music

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

type fakePlayer struct {
	mu        sync.Mutex
	node      string
	listener  lavalink.Listener
	listeners []lavalink.Listener
	plays     []string
	playErrs  map[string]error
	stops     int
	paused    bool
	volume    int
	seek      time.Duration
}

func newFakePlayer(node string) *fakePlayer {
	return &fakePlayer{node: node, playErrs: make(map[string]error), volume: -1}
}

func (p *fakePlayer) NodeName() string { return p.node }

func (p *fakePlayer) PlayTrack(ctx context.Context, encoded string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plays = append(p.plays, encoded)
	return p.playErrs[encoded]
}

func (p *fakePlayer) SetPaused(ctx context.Context, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
	return nil
}

// StopTrack reports the end like a real node does.
func (p *fakePlayer) StopTrack(ctx context.Context) error {
	p.mu.Lock()
	p.stops++
	l := p.listener
	p.mu.Unlock()
	if l.OnEnd != nil {
		l.OnEnd(lavalink.Track{}, lavalink.EndStopped)
	}
	return nil
}

func (p *fakePlayer) SetVolume(ctx context.Context, volume int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	return nil
}

func (p *fakePlayer) Seek(ctx context.Context, position time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seek = position
	return nil
}

func (p *fakePlayer) SetListener(l lavalink.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = l
	p.listeners = append(p.listeners, l)
}

func (p *fakePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seek
}

// end fires the current listener's end event.
func (p *fakePlayer) end(reason lavalink.EndReason) {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()
	if l.OnEnd != nil {
		l.OnEnd(lavalink.Track{}, reason)
	}
}

func (p *fakePlayer) exception(msg string) {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()
	if l.OnException != nil {
		l.OnException(lavalink.Track{}, lavalink.Exception{Message: msg, Severity: "common"})
	}
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

func (p *fakePlayer) currentVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

type fakeNodes struct {
	mu        sync.Mutex
	player    *fakePlayer
	joinErr   error
	joins     int
	leaves    int
	result    lavalink.LoadResult
	resolved  []string
	joinDelay time.Duration
}

func (n *fakeNodes) Resolve(ctx context.Context, identifier string) (lavalink.LoadResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, identifier)
	if n.result == nil {
		return lavalink.EmptyResult{}, nil
	}
	return n.result, nil
}

func (n *fakeNodes) Join(ctx context.Context, guildID, channelID string) (Player, error) {
	if n.joinDelay > 0 {
		time.Sleep(n.joinDelay)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.joins++
	if n.joinErr != nil {
		return nil, n.joinErr
	}
	return n.player, nil
}

func (n *fakeNodes) Leave(ctx context.Context, guildID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leaves++
	return nil
}

func (n *fakeNodes) counts() (joins, leaves int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.joins, n.leaves
}

type fakeSettings struct {
	mu       sync.Mutex
	settings model.GuildSettings
	err      error
	volumes  []int
	loops    []model.LoopMode
}

func (s *fakeSettings) Get(ctx context.Context, guildID string) (model.GuildSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.GuildSettings{}, s.err
	}
	out := s.settings
	out.GuildID = guildID
	return out, nil
}

func (s *fakeSettings) SetVolume(ctx context.Context, guildID string, volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, volume)
	s.settings.Volume = volume
	return nil
}

func (s *fakeSettings) SetLoopMode(ctx context.Context, guildID string, mode model.LoopMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops = append(s.loops, mode)
	s.settings.LoopMode = mode
	return nil
}

func (s *fakeSettings) SetAutoQueue(ctx context.Context, guildID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.AutoQueue = enabled
	return nil
}

func (s *fakeSettings) SetTwentyFourSeven(ctx context.Context, guildID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.TwentyFourSeven = enabled
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []NowPlaying
	deleted []string
}

func (n *fakeNotifier) SendNowPlaying(ctx context.Context, channelID string, np NowPlaying) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, np)
	return fmt.Sprintf("msg-%d", len(n.sent)), nil
}

func (n *fakeNotifier) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, messageID)
	return nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *fakeNotifier) wasDeleted(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, d := range n.deleted {
		if d == id {
			return true
		}
	}
	return false
}

// ========== helpers ==========

const testGuild = "guild-1"

type harness struct {
	m        *Manager
	nodes    *fakeNodes
	player   *fakePlayer
	settings *fakeSettings
	notifier *fakeNotifier
}

func newHarness(settings model.GuildSettings) *harness {
	player := newFakePlayer("node-1")
	h := &harness{
		nodes:    &fakeNodes{player: player},
		player:   player,
		settings: &fakeSettings{settings: settings},
		notifier: &fakeNotifier{},
	}
	h.m = NewManager(h.nodes, h.settings, h.notifier, Options{})
	return h
}

func rawTrack(id string) RawTrack {
	return RawTrack{
		Encoded: "enc-" + id,
		Info: &model.TrackInfo{
			Identifier: id,
			Title:      "title-" + id,
			Author:     "author-" + id,
			Length:     180000,
			IsSeekable: true,
			SourceName: "youtube",
		},
	}
}

func (h *harness) enqueue(t *testing.T, ids ...string) model.Track {
	t.Helper()
	raws := make([]RawTrack, 0, len(ids))
	for _, id := range ids {
		raws = append(raws, rawTrack(id))
	}
	first, err := h.m.Enqueue(context.Background(), EnqueueRequest{
		GuildID:        testGuild,
		UserID:         "user-1",
		VoiceChannelID: "voice-1",
		TextChannelID:  "text-1",
		Tracks:         raws,
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	return first
}

// flush waits until every step queued so far for the guild has run.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	err := exec(context.Background(), h.m, testGuild, func(ctx context.Context, g *guild) error { return nil })
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func checkQueueState(t *testing.T, snap *Snapshot) {
	t.Helper()
	if snap == nil {
		return
	}
	if (snap.Current != nil) != snap.Playing {
		t.Errorf("Expected current != nil iff playing, got current=%v playing=%v", snap.Current, snap.Playing)
	}
	if snap.Volume < 0 || snap.Volume > 100 {
		t.Errorf("Expected volume in [0,100], got %d", snap.Volume)
	}
	if !snap.LoopMode.Valid() {
		t.Errorf("Expected a valid loop mode, got %q", snap.LoopMode)
	}
}

func trackIDs(tracks []model.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.Info.Identifier
	}
	return ids
}

func equalIDs(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
