package repository

import (
	"context"
	"errors"

	"github.com/wendellddr/Bot-Spotify-sub000/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository persists per-guild playback settings.
type SettingsRepository interface {
	// Get returns nil, nil when the guild has no stored settings.
	Get(ctx context.Context, guildID string) (*model.GuildSettings, error)
	Save(ctx context.Context, settings *model.GuildSettings) error
	// UpdateField upserts a single column, creating the row from defaults if needed.
	UpdateField(ctx context.Context, defaults *model.GuildSettings, column string, value interface{}) error
	Delete(ctx context.Context, guildID string) error
	List(ctx context.Context, limit, offset int) ([]*model.GuildSettings, error)
}

// gormSettingsRepository is the GORM implementation.
type gormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a GORM-backed settings repository.
func NewGormSettingsRepository(db *gorm.DB) SettingsRepository {
	return &gormSettingsRepository{db: db}
}

func (r *gormSettingsRepository) Get(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	var settings model.GuildSettings
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// Save writes every column of settings, inserting the row if missing.
func (r *gormSettingsRepository) Save(ctx context.Context, settings *model.GuildSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			UpdateAll: true,
		}).
		Create(settings).Error
}

func (r *gormSettingsRepository) UpdateField(ctx context.Context, defaults *model.GuildSettings, column string, value interface{}) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "guild_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{column: value, "updated_at": gorm.Expr("NOW()")}),
		}).
		Create(defaults).Error
}

func (r *gormSettingsRepository) Delete(ctx context.Context, guildID string) error {
	return r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Delete(&model.GuildSettings{}).Error
}

func (r *gormSettingsRepository) List(ctx context.Context, limit, offset int) ([]*model.GuildSettings, error) {
	var list []*model.GuildSettings
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	return list, err
}
