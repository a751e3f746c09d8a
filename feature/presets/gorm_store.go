package presets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mcp-manager/feature/presets/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps presets in a SQL table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a SQL preset store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the presets table.
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.Preset{})
}

// List implements Store.
func (s *GormStore) List(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []models.Preset
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Name] = json.RawMessage(row.Data)
	}
	return out, nil
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, name string) (json.RawMessage, error) {
	var row models.Preset
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preset %s: %w", name, err)
	}
	return json.RawMessage(row.Data), nil
}

// Put implements Store.
func (s *GormStore) Put(ctx context.Context, name string, data json.RawMessage) error {
	row := models.Preset{Name: name, Data: string(data)}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save preset %s: %w", name, err)
	}
	return nil
}

// Delete implements Store.
func (s *GormStore) Delete(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Preset{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete preset %s: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
