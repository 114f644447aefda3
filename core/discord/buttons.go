package discord

import (
	"context"
	"fmt"

	"github.com/wendellddr/Bot-Spotify-sub000/core/music"
)

// Control handles a now-playing button press and returns the ephemeral reply.
func (c *Commands) Control(ctx context.Context, customID, guildID string) (string, error) {
	switch customID {
	case music.ControlPause:
		snap := c.engine.GetQueue(guildID)
		if snap == nil {
			return "", music.ErrQueueNotFound
		}
		if snap.Paused {
			if err := c.engine.Resume(ctx, guildID); err != nil {
				return "", err
			}
			return "Resumed.", nil
		}
		if err := c.engine.Pause(ctx, guildID); err != nil {
			return "", err
		}
		return "Paused.", nil

	case music.ControlSkip:
		t, err := c.engine.Skip(ctx, guildID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Skipped **%s**.", t.Info.Title), nil

	case music.ControlStop:
		if c.engine.GetQueue(guildID) == nil {
			return "", music.ErrQueueNotFound
		}
		if err := c.engine.Stop(ctx, guildID); err != nil {
			return "", err
		}
		return "Stopped.", nil

	case music.ControlLoop:
		mode, err := c.engine.CycleLoopMode(ctx, guildID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Loop mode set to **%s**.", mode), nil

	case music.ControlShuffle:
		if err := c.engine.Shuffle(ctx, guildID); err != nil {
			return "", err
		}
		return "Shuffled the queue.", nil
	}

	return "", fmt.Errorf("unknown control %q", customID)
}
