package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randomtoy/pickwheel/internal/domain"
	"github.com/randomtoy/pickwheel/internal/ports"
)

// CreateWheelRequest creates a wheel from explicit options or a preset.
type CreateWheelRequest struct {
	Options []string
	Preset  string
}

// WheelService keeps wheels in process memory and runs their spins.
type WheelService struct {
	source    domain.DrawSource
	duration  time.Duration
	store     ports.PromptStore
	assistant *Assistant
	logger    *slog.Logger

	// spins outlive the request that started them; they are bound to the
	// service lifetime and aborted by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	wheels map[string]*domain.Wheel
}

func NewWheelService(source domain.DrawSource, duration time.Duration, store ports.PromptStore, assistant *Assistant, logger *slog.Logger) *WheelService {
	ctx, cancel := context.WithCancel(context.Background())
	return &WheelService{
		source:    source,
		duration:  duration,
		store:     store,
		assistant: assistant,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		wheels:    make(map[string]*domain.Wheel),
	}
}

// Close aborts all spins in flight.
func (s *WheelService) Close() {
	s.cancel()
}

func (s *WheelService) Presets(ctx context.Context) ([]ports.Preset, error) {
	return s.store.Presets(ctx)
}

func (s *WheelService) Create(ctx context.Context, req CreateWheelRequest) (*domain.Wheel, error) {
	texts := req.Options
	if req.Preset != "" {
		p, err := s.preset(ctx, req.Preset)
		if err != nil {
			return nil, err
		}
		texts = p.Options
	}
	options := domain.OptionsFromTexts(texts)
	if len(options) > domain.MaxOptions {
		return nil, domain.ErrTooManyOptions
	}

	w := domain.NewWheel(uuid.NewString(), options, s.source, s.duration)
	s.mu.Lock()
	s.wheels[w.ID()] = w
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "wheel created", "wheel_id", w.ID(), "options", len(options))
	return w, nil
}

func (s *WheelService) Get(id string) (*domain.Wheel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wheels[id]
	if !ok {
		return nil, domain.ErrWheelNotFound
	}
	return w, nil
}

func (s *WheelService) SetOptions(id string, texts []string) (*domain.Wheel, error) {
	w, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := w.SetOptions(domain.OptionsFromTexts(texts)); err != nil {
		return nil, err
	}
	return w, nil
}

// Spin starts a spin on wheel id. The returned spin settles after the
// configured duration whether or not anyone waits for it.
func (s *WheelService) Spin(ctx context.Context, id string) (*domain.Spin, error) {
	w, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	spin, err := w.Spin(s.ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "wheel spinning",
		"wheel_id", id,
		"target_rotation", spin.TargetRotation,
		"winning_index", spin.WinningIndex,
	)
	return spin, nil
}

// Suggest replaces the wheel's options with AI suggestions. An unusable reply
// leaves the options untouched and reports domain.ErrMalformedResponse.
func (s *WheelService) Suggest(ctx context.Context, id string, req SuggestFoodsRequest) (*domain.Wheel, error) {
	w, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	options, err := s.assistant.SuggestFoods(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(options) < domain.MinOptions {
		return nil, fmt.Errorf("%w: only %d usable suggestions", domain.ErrMalformedResponse, len(options))
	}
	if err := w.SetOptions(options); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WheelService) preset(ctx context.Context, id string) (ports.Preset, error) {
	presets, err := s.store.Presets(ctx)
	if err != nil {
		return ports.Preset{}, err
	}
	for _, p := range presets {
		if p.ID == id {
			return p, nil
		}
	}
	return ports.Preset{}, fmt.Errorf("%w: %s", domain.ErrPresetNotFound, id)
}
