package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
)

// SendNowPlaying posts the now-playing embed with its control row and
// returns the message ID.
func (b *Bot) SendNowPlaying(ctx context.Context, channelID string, np music.NowPlaying) (string, error) {
	msg, err := b.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{nowPlayingEmbed(np)},
		Components: controlRow(np),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("send now playing: %w", err)
	}
	return msg.ID, nil
}

// DeleteMessage removes a previously sent message.
func (b *Bot) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := b.dg.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func nowPlayingEmbed(np music.NowPlaying) *discordgo.MessageEmbed {
	length := formatDuration(np.Duration)
	if np.IsStream {
		length = "LIVE"
	}

	embed := &discordgo.MessageEmbed{
		Title:       np.Title,
		URL:         np.URI,
		Description: fmt.Sprintf("by %s", np.Author),
		Color:       np.Color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: length, Inline: true},
			{Name: "Requested by", Value: fmt.Sprintf("<@%s>", np.RequesterID), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("%d", np.Volume), Inline: true},
			{Name: "Loop", Value: string(np.LoopMode), Inline: true},
			{Name: "Up next", Value: fmt.Sprintf("%d tracks", np.QueueLength), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Now playing", IconURL: np.IconURL},
	}
	if np.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: np.ArtworkURL}
	}
	if np.Paused {
		embed.Footer.Text = "Paused"
	}
	return embed
}

func controlRow(np music.NowPlaying) []discordgo.MessageComponent {
	buttons := make([]discordgo.MessageComponent, 0, len(np.Controls))
	for _, c := range np.Controls {
		style := discordgo.SecondaryButton
		if c.ID == music.ControlStop {
			style = discordgo.DangerButton
		}
		buttons = append(buttons, discordgo.Button{
			Label:    c.Label,
			Style:    style,
			CustomID: c.ID,
			Disabled: c.Disabled,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}
