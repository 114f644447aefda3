package model

import (
	"fmt"
	"strings"
	"time"
)

// LoopMode controls what happens to a track once it finishes.
type LoopMode string

const (
	LoopOff   LoopMode = "off"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

// Valid reports whether m is one of the enumerated loop modes.
func (m LoopMode) Valid() bool {
	switch m {
	case LoopOff, LoopTrack, LoopQueue:
		return true
	}
	return false
}

// Next cycles off -> track -> queue -> off.
func (m LoopMode) Next() LoopMode {
	switch m {
	case LoopOff:
		return LoopTrack
	case LoopTrack:
		return LoopQueue
	default:
		return LoopOff
	}
}

// ParseLoopMode parses a user supplied loop mode, case-insensitively.
func ParseLoopMode(s string) (LoopMode, error) {
	m := LoopMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("invalid loop mode: %q", s)
	}
	return m, nil
}

// GuildSettings stores the per-guild playback defaults. Rows are always
// written fully populated, so columns carry no database defaults.
type GuildSettings struct {
	GuildID         string    `gorm:"primaryKey;size:32" json:"guildId"`
	Volume          int       `gorm:"not null" json:"volume"`
	LoopMode        LoopMode  `gorm:"size:8;not null" json:"loopMode"`
	AutoQueue       bool      `gorm:"not null" json:"autoQueue"`
	AutoLeave       bool      `gorm:"not null" json:"autoLeave"`
	AutoPause       bool      `gorm:"not null" json:"autoPause"`
	TwentyFourSeven bool      `gorm:"column:twenty_four_seven;not null" json:"twentyFourSeven"`
	EmbedColor      int       `gorm:"not null" json:"embedColor"` // 0 means use the global color
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TableName overrides the default table name.
func (GuildSettings) TableName() string {
	return "guild_settings"
}

// DefaultGuildSettings are the built-in defaults used when neither the
// database nor the configuration provides a value.
func DefaultGuildSettings() GuildSettings {
	return GuildSettings{
		Volume:    80,
		LoopMode:  LoopOff,
		AutoLeave: true,
	}
}
