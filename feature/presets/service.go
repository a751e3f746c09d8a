package presets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const maxNameLength = 191

// Service validates and stores presets.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new preset service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// List returns every preset keyed by name.
func (s *Service) List(ctx context.Context) (map[string]json.RawMessage, error) {
	return s.store.List(ctx)
}

// Get returns one preset.
func (s *Service) Get(ctx context.Context, name string) (json.RawMessage, error) {
	return s.store.Get(ctx, name)
}

// Save stores data, which must be a JSON object, under name.
func (s *Service) Save(ctx context.Context, name string, data []byte) error {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1 to %d characters", ErrInvalid, maxNameLength)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: body must be a JSON object", ErrInvalid)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := s.store.Put(ctx, name, compact.Bytes()); err != nil {
		return err
	}
	s.logger.Info("Preset saved", zap.String("preset", name))
	return nil
}

// Delete removes a preset.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.store.Delete(ctx, name)
}
