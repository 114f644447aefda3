package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/wendellddr/Bot-Spotify-sub000/config"
	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/core/search"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
	"github.com/wendellddr/Bot-Spotify-sub000/model"
)

const interactionTimeout = 30 * time.Second

// Engine is the music manager as seen from the chat surface.
type Engine interface {
	GetQueue(guildID string) *music.Snapshot
	Enqueue(ctx context.Context, req music.EnqueueRequest) (model.Track, error)
	NowPlaying(ctx context.Context, guildID string) (music.NowPlaying, error)
	Position(ctx context.Context, guildID string) (time.Duration, error)
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string) error
	Resume(ctx context.Context, guildID string) error
	Skip(ctx context.Context, guildID string) (model.Track, error)
	SkipTo(ctx context.Context, guildID string, pos int) (model.Track, error)
	Remove(ctx context.Context, guildID string, pos int) (model.Track, error)
	Move(ctx context.Context, guildID string, from, to int) (model.Track, error)
	Shuffle(ctx context.Context, guildID string) error
	Clear(ctx context.Context, guildID string) (int, error)
	Seek(ctx context.Context, guildID string, position time.Duration) error
	SetVolume(ctx context.Context, guildID string, volume int) (bool, error)
	SetLoopMode(ctx context.Context, guildID string, mode model.LoopMode) error
	CycleLoopMode(ctx context.Context, guildID string) (model.LoopMode, error)
	SetAutoQueue(ctx context.Context, guildID string, enabled bool) error
	SetTwentyFourSeven(ctx context.Context, guildID string, enabled bool) error
}

// Resolver turns a user query into raw tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*search.Result, error)
}

// VoiceEvents receives the bot's own voice updates for the audio node.
type VoiceEvents interface {
	HandleVoiceStateUpdate(guildID, channelID, sessionID string)
	HandleVoiceServerUpdate(guildID, token, endpoint string)
}

// Bot owns the Discord session and routes gateway events.
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	commands *Commands
	voice    VoiceEvents

	mu         sync.Mutex
	autoPaused map[string]bool // guilds paused because the channel emptied
}

// NewBot creates the session. Nothing connects until Open.
func NewBot(cfg *config.Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	return &Bot{
		dg:         dg,
		cfg:        cfg,
		autoPaused: make(map[string]bool),
	}, nil
}

// Bind attaches the engine side. It must be called before Open.
func (b *Bot) Bind(engine Engine, resolver Resolver, voice VoiceEvents) {
	b.commands = NewCommands(engine, resolver)
	b.voice = voice
}

// Session exposes the underlying session.
func (b *Bot) Session() *discordgo.Session {
	return b.dg
}

// UserID returns the bot's user ID once the session is open.
func (b *Bot) UserID() string {
	if b.dg.State == nil || b.dg.State.User == nil {
		return ""
	}
	return b.dg.State.User.ID
}

// Open connects to the gateway and registers slash commands.
func (b *Bot) Open() error {
	if b.commands == nil {
		return fmt.Errorf("bot is not bound to an engine")
	}

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onInteractionCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onVoiceServerUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	if err := b.registerCommands(); err != nil {
		return err
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.dg.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	logger.Info("Discord session ready",
		logger.String("user", r.User.Username),
		logger.Int("guilds", len(r.Guilds)))
}

// registerCommands overwrites the command set, guild-scoped when a dev
// guild is configured.
func (b *Bot) registerCommands() error {
	appID := b.UserID()
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return fmt.Errorf("failed to get bot user: %w", err)
		}
		appID = user.ID
	}

	defs := commandDefinitions()
	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, b.cfg.DevGuildID, defs); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	logger.Info("Slash commands registered",
		logger.Int("count", len(defs)),
		logger.String("guild", b.cfg.DevGuildID))
	return nil
}

// onInteractionCreate dispatches slash commands and control buttons.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		respond(s, i, "Commands only work inside a server.")
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlash(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	default:
		logger.Debug("Ignoring interaction", logger.Int("type", int(i.Type)))
	}
}

func (b *Bot) handleSlash(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	req := Request{
		GuildID:   i.GuildID,
		UserID:    interactionUser(i),
		ChannelID: i.ChannelID,
		Options:   optionMap(data.Options),
	}
	if vs, err := b.FindUserVoiceState(i.GuildID, req.UserID); err == nil {
		req.VoiceChannelID = vs.ChannelID
	}

	// Resolving can exceed the 3s interaction window.
	deferred := data.Name == "play"
	if deferred {
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		}); err != nil {
			logger.Warn("Deferring interaction failed", logger.ErrorField(err))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	reply, err := b.commands.Run(ctx, data.Name, req)
	if err != nil {
		logger.Warn("Command failed",
			logger.Guild(i.GuildID),
			logger.String("command", data.Name),
			logger.ErrorField(err))
		reply = errorMessage(err)
	}

	if deferred {
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply}); err != nil {
			logger.Warn("Editing interaction reply failed", logger.ErrorField(err))
		}
		return
	}
	respond(s, i, reply)
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	customID := i.MessageComponentData().CustomID
	reply, err := b.commands.Control(ctx, customID, i.GuildID)
	if err != nil {
		logger.Warn("Control failed",
			logger.Guild(i.GuildID),
			logger.String("control", customID),
			logger.ErrorField(err))
		reply = errorMessage(err)
	}
	respondEphemeral(s, i, reply)
}

func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		logger.Warn("Interaction reply failed", logger.ErrorField(err))
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		logger.Warn("Interaction reply failed", logger.ErrorField(err))
	}
}
