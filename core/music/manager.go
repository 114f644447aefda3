package music

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

// Player is the per-guild transport control surface of an audio node.
type Player interface {
	NodeName() string
	PlayTrack(ctx context.Context, encoded string) error
	SetPaused(ctx context.Context, paused bool) error
	StopTrack(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error
	Seek(ctx context.Context, position time.Duration) error
	SetListener(l lavalink.Listener)
	Position() time.Duration
}

// AudioNodes resolves identifiers and manages voice connections.
type AudioNodes interface {
	Resolve(ctx context.Context, identifier string) (lavalink.LoadResult, error)
	Join(ctx context.Context, guildID, channelID string) (Player, error)
	Leave(ctx context.Context, guildID string) error
}

// SettingsStore persists per-guild defaults. Get returns fully defaulted settings.
type SettingsStore interface {
	Get(ctx context.Context, guildID string) (model.GuildSettings, error)
	SetVolume(ctx context.Context, guildID string, volume int) error
	SetLoopMode(ctx context.Context, guildID string, mode model.LoopMode) error
	SetAutoQueue(ctx context.Context, guildID string, enabled bool) error
	SetTwentyFourSeven(ctx context.Context, guildID string, enabled bool) error
}

// Notifier posts and deletes now-playing messages in a text channel.
type Notifier interface {
	SendNowPlaying(ctx context.Context, channelID string, np NowPlaying) (messageID string, err error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

// Observer is told about every published snapshot. snap is nil when the
// guild's queue has been destroyed. Implementations must not block.
type Observer interface {
	QueueChanged(guildID string, snap *Snapshot)
}

// Options tunes a Manager. Zero values pick the defaults.
type Options struct {
	Defaults    model.GuildSettings // used when the settings store fails
	IconURL     string
	EmbedColor  int
	Recommender Recommender
	Rand        *rand.Rand
	Now         func() time.Time
}

// Manager is the queue engine: one queue per active guild, driven by
// commands and audio node events.
type Manager struct {
	nodes       AudioNodes
	settings    SettingsStore
	notifier    Notifier
	recommender Recommender
	defaults    model.GuildSettings
	iconURL     string
	embedColor  int
	now         func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand

	mu     sync.Mutex
	guilds map[string]*guild

	observersMu sync.RWMutex
	observers   []Observer
}

// NewManager creates a queue engine.
func NewManager(nodes AudioNodes, settings SettingsStore, notifier Notifier, opts Options) *Manager {
	m := &Manager{
		nodes:       nodes,
		settings:    settings,
		notifier:    notifier,
		recommender: opts.Recommender,
		defaults:    opts.Defaults,
		iconURL:     opts.IconURL,
		embedColor:  opts.EmbedColor,
		now:         opts.Now,
		rand:        opts.Rand,
		guilds:      make(map[string]*guild),
	}
	if m.recommender == nil {
		m.recommender = RadioRecommender{}
	}
	if !m.defaults.LoopMode.Valid() {
		m.defaults = model.DefaultGuildSettings()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Subscribe registers o for snapshot notifications.
func (m *Manager) Subscribe(o Observer) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) intn(n int) int {
	if m.rand == nil {
		return rand.IntN(n)
	}
	m.randMu.Lock()
	defer m.randMu.Unlock()
	return m.rand.IntN(n)
}

// ========== Read accessors ==========

// GetQueue returns the latest snapshot of guildID's queue, or nil when the
// guild has none.
func (m *Manager) GetQueue(guildID string) *Snapshot {
	g := m.lookup(guildID)
	if g == nil {
		return nil
	}
	return g.snapshot.Load()
}

// NowPlaying renders the now-playing data for guildID.
func (m *Manager) NowPlaying(ctx context.Context, guildID string) (NowPlaying, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (NowPlaying, error) {
		q := g.queue
		if q == nil {
			return NowPlaying{}, ErrQueueNotFound
		}
		if q.current == nil {
			return NowPlaying{}, ErrNothingPlaying
		}
		return renderNowPlaying(*q.current, q), nil
	})
}

// Position returns the playhead of the current track.
func (m *Manager) Position(ctx context.Context, guildID string) (time.Duration, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (time.Duration, error) {
		q := g.queue
		if q == nil {
			return 0, ErrQueueNotFound
		}
		if !q.playing {
			return 0, ErrNothingPlaying
		}
		return q.player.Position(), nil
	})
}

// ========== Lifecycle ==========

// EnqueueRequest describes one play request.
type EnqueueRequest struct {
	GuildID        string
	UserID         string
	VoiceChannelID string // the acting user's current voice channel
	TextChannelID  string
	Tracks         []RawTrack
}

// Enqueue normalizes req.Tracks, appends them to the guild's queue (creating
// it if needed) and starts playback when idle. It returns the first queued track.
func (m *Manager) Enqueue(ctx context.Context, req EnqueueRequest) (model.Track, error) {
	if req.GuildID == "" || req.UserID == "" || len(req.Tracks) == 0 {
		return model.Track{}, ErrInvalidRequest
	}
	if req.VoiceChannelID == "" {
		return model.Track{}, ErrNotInVoiceChannel
	}

	tracks := NormalizeAll(req.Tracks, req.UserID)
	if len(tracks) == 0 {
		return model.Track{}, ErrNoValidTracks
	}

	return call(ctx, m, req.GuildID, func(ctx context.Context, g *guild) (model.Track, error) {
		q, err := m.getOrCreate(ctx, g, req.VoiceChannelID, req.TextChannelID)
		if err != nil {
			return model.Track{}, err
		}

		q.tracks = append(q.tracks, tracks...)
		for _, t := range tracks {
			q.recent.Add(t.Info.Identifier)
		}

		logger.Info("tracks enqueued",
			logger.Guild(g.id),
			logger.String("user", req.UserID),
			logger.Int("count", len(tracks)),
			logger.Int("queueLength", len(q.tracks)))

		if !q.playing {
			m.advance(ctx, g)
		}
		return tracks[0], nil
	})
}

// getOrCreate returns the guild's queue, joining voice and loading settings
// when it does not exist yet.
func (m *Manager) getOrCreate(ctx context.Context, g *guild, voiceChannelID, textChannelID string) (*guildQueue, error) {
	if g.queue != nil {
		return g.queue, nil
	}

	player, err := m.nodes.Join(ctx, g.id, voiceChannelID)
	if err != nil {
		return nil, fmt.Errorf("join voice: %w", err)
	}

	settings := m.loadSettings(ctx, g.id)
	color := settings.EmbedColor
	if color == 0 {
		color = m.embedColor
	}

	g.queue = &guildQueue{
		guildID:         g.id,
		nodeName:        player.NodeName(),
		player:          player,
		voiceChannelID:  voiceChannelID,
		textChannelID:   textChannelID,
		volume:          clampVolume(settings.Volume),
		loopMode:        settings.LoopMode,
		autoQueue:       settings.AutoQueue,
		autoLeave:       settings.AutoLeave,
		autoPause:       settings.AutoPause,
		twentyFourSeven: settings.TwentyFourSeven,
		recent:          newRecentSet(maxRecent),
		embedColor:      color,
		iconURL:         m.iconURL,
	}

	logger.Info("queue created",
		logger.Guild(g.id),
		logger.String("node", g.queue.nodeName),
		logger.String("voiceChannel", voiceChannelID))
	return g.queue, nil
}

func (m *Manager) loadSettings(ctx context.Context, guildID string) model.GuildSettings {
	if m.settings == nil {
		return m.defaults
	}
	settings, err := m.settings.Get(ctx, guildID)
	if err != nil {
		logger.Warn("load guild settings failed, using defaults", logger.Guild(guildID), logger.ErrorField(err))
		return m.defaults
	}
	if !settings.LoopMode.Valid() {
		settings.LoopMode = m.defaults.LoopMode
	}
	return settings
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Stop clears the guild's queue and leaves voice. It is a no-op when the
// guild has no queue.
func (m *Manager) Stop(ctx context.Context, guildID string) error {
	if m.lookup(guildID) == nil {
		return nil
	}
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		q := g.queue
		if q == nil {
			return nil
		}
		q.tracks = nil
		if q.playing {
			if err := q.player.StopTrack(ctx); err != nil {
				logger.Warn("stop track failed", logger.Guild(g.id), logger.ErrorField(err))
			}
		}
		m.destroy(ctx, g, true)
		return nil
	})
}

// destroy removes the guild's queue. leave forces a voice disconnect;
// otherwise voice is left only when autoLeave is on and 24/7 is off.
func (m *Manager) destroy(ctx context.Context, g *guild, leave bool) {
	q := g.queue
	if q == nil {
		return
	}
	q.generation++
	q.current = nil
	q.playing = false
	q.tracks = nil
	q.player.SetListener(lavalink.Listener{})
	g.queue = nil

	m.deleteMessageDetached(q.textChannelID, q.nowPlayingMessageID)
	q.nowPlayingMessageID = ""

	if leave || (q.autoLeave && !q.twentyFourSeven) {
		if err := m.nodes.Leave(ctx, g.id); err != nil {
			logger.Warn("leave voice failed", logger.Guild(g.id), logger.ErrorField(err))
		}
	}
	logger.Info("queue destroyed", logger.Guild(g.id))
}

// HandleNodeClosed force-destroys every queue hosted by the closed node.
func (m *Manager) HandleNodeClosed(nodeName string) {
	m.mu.Lock()
	guilds := make([]*guild, 0, len(m.guilds))
	for _, g := range m.guilds {
		guilds = append(guilds, g)
	}
	m.mu.Unlock()

	for _, g := range guilds {
		m.post(g, func() {
			if q := g.queue; q != nil && q.nodeName == nodeName {
				logger.Warn("audio node closed, destroying queue",
					logger.Guild(g.id),
					logger.String("node", nodeName))
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				m.destroy(ctx, g, true)
			}
		})
	}
}

// ========== Queue operations ==========

// Pause pauses the current track.
func (m *Manager) Pause(ctx context.Context, guildID string) error {
	return m.setPaused(ctx, guildID, true)
}

// Resume resumes a paused track.
func (m *Manager) Resume(ctx context.Context, guildID string) error {
	return m.setPaused(ctx, guildID, false)
}

func (m *Manager) setPaused(ctx context.Context, guildID string, paused bool) error {
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		q, err := requireQueue(g)
		if err != nil {
			return err
		}
		if !q.playing {
			return ErrNothingPlaying
		}
		if err := q.player.SetPaused(ctx, paused); err != nil {
			return fmt.Errorf("set paused: %w", err)
		}
		q.paused = paused
		return nil
	})
}

// Skip stops the current track; the node's end event starts the next one.
// It returns the skipped track.
func (m *Manager) Skip(ctx context.Context, guildID string) (model.Track, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (model.Track, error) {
		q, err := requireQueue(g)
		if err != nil {
			return model.Track{}, err
		}
		if !q.playing || q.current == nil {
			return model.Track{}, ErrNothingPlaying
		}
		skipped := *q.current
		if err := q.player.StopTrack(ctx); err != nil {
			return model.Track{}, fmt.Errorf("stop track: %w", err)
		}
		return skipped, nil
	})
}

// SkipTo drops every track before 1-based pos and skips to it.
func (m *Manager) SkipTo(ctx context.Context, guildID string, pos int) (model.Track, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (model.Track, error) {
		q, err := requireQueue(g)
		if err != nil {
			return model.Track{}, err
		}
		tracks, err := dropBefore(q.tracks, pos)
		if err != nil {
			return model.Track{}, err
		}
		q.tracks = tracks
		target := q.tracks[0]

		if !q.playing {
			m.advance(ctx, g)
			return target, nil
		}
		if err := q.player.StopTrack(ctx); err != nil {
			return model.Track{}, fmt.Errorf("stop track: %w", err)
		}
		return target, nil
	})
}

// Remove deletes and returns the track at 1-based pos.
func (m *Manager) Remove(ctx context.Context, guildID string, pos int) (model.Track, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (model.Track, error) {
		q, err := requireQueue(g)
		if err != nil {
			return model.Track{}, err
		}
		tracks, removed, err := removeTrack(q.tracks, pos)
		if err != nil {
			return model.Track{}, err
		}
		q.tracks = tracks
		return removed, nil
	})
}

// Move relocates the track at 1-based from to 1-based to and returns it.
func (m *Manager) Move(ctx context.Context, guildID string, from, to int) (model.Track, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (model.Track, error) {
		q, err := requireQueue(g)
		if err != nil {
			return model.Track{}, err
		}
		if len(q.tracks) == 0 {
			return model.Track{}, ErrQueueEmpty
		}
		tracks, err := moveTrack(q.tracks, from, to)
		if err != nil {
			return model.Track{}, err
		}
		q.tracks = tracks
		return q.tracks[to-1], nil
	})
}

// Shuffle randomly permutes the upcoming tracks.
func (m *Manager) Shuffle(ctx context.Context, guildID string) error {
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		q, err := requireQueue(g)
		if err != nil {
			return err
		}
		if len(q.tracks) < 2 {
			return ErrNothingToShuffle
		}
		shuffleTracks(q.tracks, m.intn)
		return nil
	})
}

// Clear drops every upcoming track and returns how many were removed.
// The current track keeps playing.
func (m *Manager) Clear(ctx context.Context, guildID string) (int, error) {
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (int, error) {
		q, err := requireQueue(g)
		if err != nil {
			return 0, err
		}
		if len(q.tracks) == 0 {
			return 0, ErrQueueEmpty
		}
		n := len(q.tracks)
		q.tracks = nil
		return n, nil
	})
}

// Seek moves the playhead of the current track.
func (m *Manager) Seek(ctx context.Context, guildID string, position time.Duration) error {
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		q, err := requireQueue(g)
		if err != nil {
			return err
		}
		if !q.playing || q.current == nil {
			return ErrNothingPlaying
		}
		info := q.current.Info
		if info.IsStream || (!info.IsSeekable && info.Length == 0) {
			return ErrNotSeekable
		}
		if position < 0 || position > info.Duration() {
			return fmt.Errorf("%w: seek position %s outside 0-%s", ErrInvalidRequest, position, info.Duration())
		}
		if err := q.player.Seek(ctx, position); err != nil {
			return fmt.Errorf("seek: %w", err)
		}
		return nil
	})
}

// ========== Settings ==========

// SetVolume persists volume and applies it to the live player if there is
// one. It reports whether the change was applied live.
func (m *Manager) SetVolume(ctx context.Context, guildID string, volume int) (bool, error) {
	if volume < 0 || volume > 100 {
		return false, fmt.Errorf("%w: volume must be between 0 and 100", ErrInvalidRequest)
	}
	return call(ctx, m, guildID, func(ctx context.Context, g *guild) (bool, error) {
		if m.settings != nil {
			if err := m.settings.SetVolume(ctx, guildID, volume); err != nil {
				return false, fmt.Errorf("save volume: %w", err)
			}
		}
		q := g.queue
		if q == nil {
			return false, nil
		}
		q.volume = volume
		if err := q.player.SetVolume(ctx, volume); err != nil {
			return false, fmt.Errorf("apply volume: %w", err)
		}
		return true, nil
	})
}

// SetLoopMode persists mode and updates the live queue if present.
func (m *Manager) SetLoopMode(ctx context.Context, guildID string, mode model.LoopMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: unknown loop mode %q", ErrInvalidRequest, mode)
	}
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		if m.settings != nil {
			if err := m.settings.SetLoopMode(ctx, guildID, mode); err != nil {
				return fmt.Errorf("save loop mode: %w", err)
			}
		}
		if q := g.queue; q != nil {
			q.loopMode = mode
		}
		return nil
	})
}

// CycleLoopMode advances off -> track -> queue -> off and returns the new mode.
func (m *Manager) CycleLoopMode(ctx context.Context, guildID string) (model.LoopMode, error) {
	snap := m.GetQueue(guildID)
	if snap == nil {
		return "", ErrQueueNotFound
	}
	next := snap.LoopMode.Next()
	return next, m.SetLoopMode(ctx, guildID, next)
}

// SetAutoQueue persists the auto-queue toggle and updates the live queue.
func (m *Manager) SetAutoQueue(ctx context.Context, guildID string, enabled bool) error {
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		if m.settings != nil {
			if err := m.settings.SetAutoQueue(ctx, guildID, enabled); err != nil {
				return fmt.Errorf("save auto-queue: %w", err)
			}
		}
		if q := g.queue; q != nil {
			q.autoQueue = enabled
		}
		return nil
	})
}

// SetTwentyFourSeven persists the 24/7 toggle and updates the live queue.
func (m *Manager) SetTwentyFourSeven(ctx context.Context, guildID string, enabled bool) error {
	return exec(ctx, m, guildID, func(ctx context.Context, g *guild) error {
		if m.settings != nil {
			if err := m.settings.SetTwentyFourSeven(ctx, guildID, enabled); err != nil {
				return fmt.Errorf("save 24/7: %w", err)
			}
		}
		if q := g.queue; q != nil {
			q.twentyFourSeven = enabled
		}
		return nil
	})
}

func requireQueue(g *guild) (*guildQueue, error) {
	if g.queue == nil {
		return nil, ErrQueueNotFound
	}
	return g.queue, nil
}
