package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/wendellddr/Bot-Spotify-sub000/core/lavalink"
	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/core/search"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

const queuePageSize = 10

// Request is one slash command invocation, stripped of transport details.
type Request struct {
	GuildID        string
	UserID         string
	ChannelID      string
	VoiceChannelID string
	Options        map[string]*discordgo.ApplicationCommandInteractionDataOption
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (r Request) str(name string) string {
	if o, ok := r.Options[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (r Request) integer(name string) (int, bool) {
	if o, ok := r.Options[name]; ok {
		return int(o.IntValue()), true
	}
	return 0, false
}

// Commands runs slash commands and control buttons against the engine.
type Commands struct {
	engine   Engine
	resolver Resolver
	handlers map[string]func(ctx context.Context, req Request) (string, error)
}

// NewCommands creates the command set.
func NewCommands(engine Engine, resolver Resolver) *Commands {
	c := &Commands{engine: engine, resolver: resolver}
	c.handlers = map[string]func(ctx context.Context, req Request) (string, error){
		"play":       c.play,
		"skip":       c.skip,
		"skipto":     c.skipTo,
		"pause":      c.pause,
		"resume":     c.resume,
		"stop":       c.stop,
		"queue":      c.queue,
		"nowplaying": c.nowPlaying,
		"remove":     c.remove,
		"move":       c.move,
		"shuffle":    c.shuffle,
		"loop":       c.loop,
		"volume":     c.volume,
		"seek":       c.seek,
		"autoplay":   c.autoplay,
		"247":        c.twentyFourSeven,
		"clear":      c.clear,
	}
	return c
}

// Run executes the named command and returns the reply text.
func (c *Commands) Run(ctx context.Context, name string, req Request) (string, error) {
	h, ok := c.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown command %q", name)
	}
	return h(ctx, req)
}

// errorMessage maps an error to reply text.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, search.ErrNoMatches):
		return "No results found."
	case errors.Is(err, search.ErrSpotifyDisabled):
		return "Spotify links are not enabled on this bot."
	case errors.Is(err, search.ErrEmptyQuery):
		return "Tell me what to play."
	}
	var loadErr lavalink.ErrorResult
	if errors.As(err, &loadErr) {
		return "Could not load that: " + loadErr.Message
	}
	return music.UserMessage(err)
}

// ========== Handlers ==========

func (c *Commands) play(ctx context.Context, req Request) (string, error) {
	if req.VoiceChannelID == "" {
		return "", music.ErrNotInVoiceChannel
	}

	res, err := c.resolver.Resolve(ctx, req.str("query"))
	if err != nil {
		return "", err
	}

	wasIdle := isIdle(c.engine.GetQueue(req.GuildID))
	first, err := c.engine.Enqueue(ctx, music.EnqueueRequest{
		GuildID:        req.GuildID,
		UserID:         req.UserID,
		VoiceChannelID: req.VoiceChannelID,
		TextChannelID:  req.ChannelID,
		Tracks:         res.Tracks,
	})
	if err != nil {
		return "", err
	}

	started := wasIdle && isCurrent(c.engine.GetQueue(req.GuildID), first)

	if len(res.Tracks) > 1 {
		name := res.PlaylistName
		if name == "" {
			name = "playlist"
		}
		reply := fmt.Sprintf("Queued **%d** tracks from **%s**.", len(res.Tracks), name)
		if started {
			reply += fmt.Sprintf(" Now playing **%s** by %s.", first.Info.Title, first.Info.Author)
		}
		return reply, nil
	}
	if started {
		return fmt.Sprintf("Now playing **%s** by %s.", first.Info.Title, first.Info.Author), nil
	}
	return fmt.Sprintf("Queued **%s** by %s.", first.Info.Title, first.Info.Author), nil
}

func isIdle(snap *music.Snapshot) bool {
	return snap == nil || snap.Current == nil
}

// isCurrent reports whether t is the track now playing in snap.
func isCurrent(snap *music.Snapshot, t model.Track) bool {
	return snap != nil && snap.Current != nil && snap.Current.Encoded == t.Encoded
}

func (c *Commands) skip(ctx context.Context, req Request) (string, error) {
	t, err := c.engine.Skip(ctx, req.GuildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Skipped **%s**.", t.Info.Title), nil
}

func (c *Commands) skipTo(ctx context.Context, req Request) (string, error) {
	pos, _ := req.integer("position")
	t, err := c.engine.SkipTo(ctx, req.GuildID, pos)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Skipped to **%s**.", t.Info.Title), nil
}

func (c *Commands) pause(ctx context.Context, req Request) (string, error) {
	if err := c.engine.Pause(ctx, req.GuildID); err != nil {
		return "", err
	}
	return "Paused.", nil
}

func (c *Commands) resume(ctx context.Context, req Request) (string, error) {
	if err := c.engine.Resume(ctx, req.GuildID); err != nil {
		return "", err
	}
	return "Resumed.", nil
}

func (c *Commands) stop(ctx context.Context, req Request) (string, error) {
	if c.engine.GetQueue(req.GuildID) == nil {
		return "", music.ErrQueueNotFound
	}
	if err := c.engine.Stop(ctx, req.GuildID); err != nil {
		return "", err
	}
	return "Stopped and cleared the queue.", nil
}

func (c *Commands) queue(ctx context.Context, req Request) (string, error) {
	snap := c.engine.GetQueue(req.GuildID)
	if snap == nil {
		return "", music.ErrQueueNotFound
	}
	page, _ := req.integer("page")
	return formatQueue(snap, page), nil
}

func (c *Commands) nowPlaying(ctx context.Context, req Request) (string, error) {
	np, err := c.engine.NowPlaying(ctx, req.GuildID)
	if err != nil {
		return "", err
	}
	pos, err := c.engine.Position(ctx, req.GuildID)
	if err != nil {
		return "", err
	}

	length := formatDuration(np.Duration)
	if np.IsStream {
		length = "LIVE"
	}
	return fmt.Sprintf("Now playing **%s** by %s [%s / %s], requested by <@%s>.",
		np.Title, np.Author, formatDuration(pos), length, np.RequesterID), nil
}

func (c *Commands) remove(ctx context.Context, req Request) (string, error) {
	pos, _ := req.integer("position")
	t, err := c.engine.Remove(ctx, req.GuildID, pos)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed **%s**.", t.Info.Title), nil
}

func (c *Commands) move(ctx context.Context, req Request) (string, error) {
	from, _ := req.integer("from")
	to, _ := req.integer("to")
	t, err := c.engine.Move(ctx, req.GuildID, from, to)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved **%s** to position %d.", t.Info.Title, to), nil
}

func (c *Commands) shuffle(ctx context.Context, req Request) (string, error) {
	if err := c.engine.Shuffle(ctx, req.GuildID); err != nil {
		return "", err
	}
	return "Shuffled the queue.", nil
}

func (c *Commands) loop(ctx context.Context, req Request) (string, error) {
	mode, err := model.ParseLoopMode(req.str("mode"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", music.ErrInvalidRequest, err)
	}
	if err := c.engine.SetLoopMode(ctx, req.GuildID, mode); err != nil {
		return "", err
	}
	return fmt.Sprintf("Loop mode set to **%s**.", mode), nil
}

func (c *Commands) volume(ctx context.Context, req Request) (string, error) {
	v, ok := req.integer("level")
	if !ok {
		snap := c.engine.GetQueue(req.GuildID)
		if snap == nil {
			return "", music.ErrQueueNotFound
		}
		return fmt.Sprintf("Volume is **%d**.", snap.Volume), nil
	}

	live, err := c.engine.SetVolume(ctx, req.GuildID, v)
	if err != nil {
		return "", err
	}
	if !live {
		return fmt.Sprintf("Default volume set to **%d**.", v), nil
	}
	return fmt.Sprintf("Volume set to **%d**.", v), nil
}

func (c *Commands) seek(ctx context.Context, req Request) (string, error) {
	secs, _ := req.integer("seconds")
	pos := time.Duration(secs) * time.Second
	if err := c.engine.Seek(ctx, req.GuildID, pos); err != nil {
		return "", err
	}
	return fmt.Sprintf("Seeked to %s.", formatDuration(pos)), nil
}

func (c *Commands) autoplay(ctx context.Context, req Request) (string, error) {
	on := req.str("state") == "on"
	if err := c.engine.SetAutoQueue(ctx, req.GuildID, on); err != nil {
		return "", err
	}
	return "Autoplay " + onOff(on) + ".", nil
}

func (c *Commands) twentyFourSeven(ctx context.Context, req Request) (string, error) {
	on := req.str("state") == "on"
	if err := c.engine.SetTwentyFourSeven(ctx, req.GuildID, on); err != nil {
		return "", err
	}
	return "24/7 mode " + onOff(on) + ".", nil
}

func (c *Commands) clear(ctx context.Context, req Request) (string, error) {
	n, err := c.engine.Clear(ctx, req.GuildID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed %d tracks from the queue.", n), nil
}

// ========== Formatting ==========

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatQueue renders one page of the queue. page is 1-based; out of range
// pages are clamped.
func formatQueue(snap *music.Snapshot, page int) string {
	var sb strings.Builder

	if snap.Current != nil {
		state := "Now playing"
		if snap.Paused {
			state = "Paused"
		}
		fmt.Fprintf(&sb, "%s: **%s** by %s\n", state, snap.Current.Info.Title, snap.Current.Info.Author)
	}

	if len(snap.Tracks) == 0 {
		sb.WriteString("The queue is empty.")
		return sb.String()
	}

	pages := (len(snap.Tracks) + queuePageSize - 1) / queuePageSize
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * queuePageSize
	end := start + queuePageSize
	if end > len(snap.Tracks) {
		end = len(snap.Tracks)
	}
	for i := start; i < end; i++ {
		t := snap.Tracks[i]
		fmt.Fprintf(&sb, "`%d.` %s - %s [%s]\n", i+1, t.Info.Title, t.Info.Author, formatDuration(t.Info.Duration()))
	}
	fmt.Fprintf(&sb, "Page %d/%d, %d tracks, %s total, loop %s",
		page, pages, len(snap.Tracks), formatDuration(snap.TotalDuration()), snap.LoopMode)
	return sb.String()
}

// ========== Definitions ==========

func intOption(name, desc string, min float64, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: desc,
		MinValue:    &min,
		Required:    required,
	}
}

func toggleOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "state",
		Description: "on or off",
		Required:    true,
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "on", Value: "on"},
			{Name: "off", Value: "off"},
		},
	}
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song, playlist or search query",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "URL, Spotify link or search terms",
				Required:    true,
			}},
		},
		{Name: "skip", Description: "Skip the current track"},
		{
			Name:        "skipto",
			Description: "Skip to a position in the queue",
			Options:     []*discordgo.ApplicationCommandOption{intOption("position", "Queue position", 1, true)},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{
			Name:        "queue",
			Description: "Show the queue",
			Options:     []*discordgo.ApplicationCommandOption{intOption("page", "Page number", 1, false)},
		},
		{Name: "nowplaying", Description: "Show the current track"},
		{
			Name:        "remove",
			Description: "Remove a track from the queue",
			Options:     []*discordgo.ApplicationCommandOption{intOption("position", "Queue position", 1, true)},
		},
		{
			Name:        "move",
			Description: "Move a track within the queue",
			Options: []*discordgo.ApplicationCommandOption{
				intOption("from", "Current position", 1, true),
				intOption("to", "New position", 1, true),
			},
		},
		{Name: "shuffle", Description: "Shuffle the queue"},
		{
			Name:        "loop",
			Description: "Set the loop mode",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "Loop mode",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "off", Value: string(model.LoopOff)},
					{Name: "track", Value: string(model.LoopTrack)},
					{Name: "queue", Value: string(model.LoopQueue)},
				},
			}},
		},
		{
			Name:        "volume",
			Description: "Show or set the volume",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "level",
				Description: "0-100",
				MinValue:    new(float64),
				MaxValue:    100,
			}},
		},
		{
			Name:        "seek",
			Description: "Seek within the current track",
			Options:     []*discordgo.ApplicationCommandOption{intOption("seconds", "Position in seconds", 0, true)},
		},
		{
			Name:        "autoplay",
			Description: "Queue related tracks when the queue runs out",
			Options:     []*discordgo.ApplicationCommandOption{toggleOption()},
		},
		{
			Name:        "247",
			Description: "Stay in the voice channel when the queue ends",
			Options:     []*discordgo.ApplicationCommandOption{toggleOption()},
		},
		{Name: "clear", Description: "Remove every upcoming track"},
	}
}
