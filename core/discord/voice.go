package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
	"github.com/wendellddr/Bot-Spotify-sub000/logger"
)

// ErrUserNotInVoice is returned when the user has no voice state in the guild.
var ErrUserNotInVoice = errors.New("user not in any voice channel")

// VoiceState holds minimal voice channel state for a user.
type VoiceState struct {
	ChannelID string
	UserID    string
}

// FindUserVoiceState finds the voice state of a user.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return &VoiceState{ChannelID: vs.ChannelID, UserID: vs.UserID}, nil
		}
	}
	return nil, ErrUserNotInVoice
}

// VoiceChannel returns the user's current voice channel, or "" when they are
// not connected.
func (b *Bot) VoiceChannel(guildID, userID string) (string, error) {
	vs, err := b.FindUserVoiceState(guildID, userID)
	if errors.Is(err, ErrUserNotInVoice) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return vs.ChannelID, nil
}

// JoinVoice asks the gateway to move the bot into channelID. The audio
// itself is carried by the node, so no voice connection is opened here.
func (b *Bot) JoinVoice(guildID, channelID string) error {
	if err := b.dg.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return fmt.Errorf("error joining voice channel: %w", err)
	}
	return nil
}

// LeaveVoice disconnects the bot from voice in guildID.
func (b *Bot) LeaveVoice(guildID string) error {
	if err := b.dg.ChannelVoiceJoinManual(guildID, "", false, true); err != nil {
		return fmt.Errorf("error leaving voice channel: %w", err)
	}
	return nil
}

func (b *Bot) onVoiceServerUpdate(s *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	if b.voice != nil {
		b.voice.HandleVoiceServerUpdate(v.GuildID, v.Token, v.Endpoint)
	}
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	botID := b.UserID()
	if v.UserID == botID {
		if b.voice != nil {
			b.voice.HandleVoiceStateUpdate(v.GuildID, v.ChannelID, v.SessionID)
		}
		if v.ChannelID == "" {
			b.onBotDisconnected(v.GuildID)
			return
		}
	}
	b.checkAutoPause(v.GuildID)
}

// onBotDisconnected tears the queue down when the bot was kicked or moved
// out of voice by someone else.
func (b *Bot) onBotDisconnected(guildID string) {
	b.clearAutoPaused(guildID)
	if b.commands.engine.GetQueue(guildID) == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.commands.engine.Stop(ctx, guildID); err != nil {
		logger.Warn("Stopping queue after disconnect failed", logger.Guild(guildID), logger.ErrorField(err))
	}
}

// checkAutoPause pauses when the bot is left alone and resumes a pause it
// caused once someone is back.
func (b *Bot) checkAutoPause(guildID string) {
	snap := b.commands.engine.GetQueue(guildID)
	if snap == nil {
		b.clearAutoPaused(guildID)
		return
	}

	listeners := b.countListeners(guildID, snap.VoiceChannelID)
	action := autoPauseAction(snap, listeners, b.isAutoPaused(guildID))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch action {
	case actionPause:
		if err := b.commands.engine.Pause(ctx, guildID); err != nil {
			logger.Warn("Auto-pause failed", logger.Guild(guildID), logger.ErrorField(err))
			return
		}
		b.setAutoPaused(guildID, true)
		logger.Info("Auto-paused, voice channel empty", logger.Guild(guildID))
	case actionResume:
		b.clearAutoPaused(guildID)
		if err := b.commands.engine.Resume(ctx, guildID); err != nil {
			logger.Warn("Auto-resume failed", logger.Guild(guildID), logger.ErrorField(err))
			return
		}
		logger.Info("Auto-resumed, listener joined", logger.Guild(guildID))
	}
}

// countListeners counts non-bot users in channelID.
func (b *Bot) countListeners(guildID, channelID string) int {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return 0
	}

	count := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == b.UserID() {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
			continue
		}
		count++
	}
	return count
}

type pauseAction int

const (
	actionNone pauseAction = iota
	actionPause
	actionResume
)

func autoPauseAction(snap *music.Snapshot, listeners int, autoPaused bool) pauseAction {
	if !snap.AutoPause || !snap.Playing {
		return actionNone
	}
	if listeners == 0 && !snap.Paused {
		return actionPause
	}
	if listeners > 0 && snap.Paused && autoPaused {
		return actionResume
	}
	return actionNone
}

func (b *Bot) isAutoPaused(guildID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.autoPaused[guildID]
}

func (b *Bot) setAutoPaused(guildID string, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoPaused[guildID] = v
}

func (b *Bot) clearAutoPaused(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.autoPaused, guildID)
}
