// Package bar is the service layer between the HTTP API and the rig. It
// owns the single dispense slot, applies the stored bottle configuration
// before each action and records what happened.
package bar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"go.uber.org/zap"

	"barrobot/internal/dispense"
	"barrobot/internal/hardware"
	"barrobot/internal/models"
	"barrobot/internal/monitoring"
	"barrobot/internal/notify"
	"barrobot/internal/recipes"
	"barrobot/internal/resolver"
	"barrobot/internal/scaling"
)

// ErrBusy is returned when the rig is already making a drink or moving.
var ErrBusy = errors.New("the bar is busy")

// BottleStore loads and saves the bottle configuration.
type BottleStore interface {
	Load() (models.BottleConfig, error)
	Save(models.BottleConfig) (models.BottleConfig, error)
}

// Deps are the collaborators of a Service. Importer, DB, Publisher, Metrics
// and Board may be nil.
type Deps struct {
	Recipes    *recipes.Store
	Importer   *recipes.Importer
	Bottles    BottleStore
	Controller *hardware.Controller
	DB         *gorm.DB
	Publisher  notify.Publisher
	Metrics    *monitoring.Metrics
	Board      *monitoring.Board
	Logger     *zap.Logger
}

// Service runs the bar.
type Service struct {
	Deps
	orch *dispense.Orchestrator

	mu   sync.Mutex // one physical operation at a time
	busy atomic.Bool
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Publisher == nil {
		d.Publisher = notify.Nop{}
	}
	if d.Board == nil {
		d.Board = monitoring.NewBoard()
	}
	return &Service{
		Deps: d,
		orch: dispense.NewOrchestrator(d.Controller, d.Logger.Named("dispense")),
	}
}

// Suggestion is a recipe together with what it lacks.
type Suggestion struct {
	Recipe  models.Recipe `json:"recipe"`
	Missing []string      `json:"missing"`
}

// Drink is the detail view of one recipe.
type Drink struct {
	Recipe   models.Recipe `json:"recipe"`
	Scaled   models.Recipe `json:"scaled"`
	Missing  []string      `json:"missing"`
	Makeable bool          `json:"makeable"`
}

// Run is the outcome of one dispense.
type Run struct {
	ID       string           `json:"run_id"`
	Recipe   string           `json:"recipe"`
	Status   models.RunStatus `json:"status"`
	SafeMode bool             `json:"safe_mode"`
	Events   []dispense.Event `json:"events"`
	Err      error            `json:"-"`
}

// Status is the rig overview.
type Status struct {
	Turret hardware.Status        `json:"turret"`
	Busy   bool                   `json:"busy"`
	Board  map[string]interface{} `json:"board"`
}

func (s *Service) Config() (models.BottleConfig, error) {
	return s.Bottles.Load()
}

// UpdateConfig stores cfg and hands pins and safe mode to the controller.
func (s *Service) UpdateConfig(cfg models.BottleConfig) (models.BottleConfig, error) {
	saved, err := s.Bottles.Save(cfg)
	if err != nil {
		return saved, err
	}
	return saved, s.apply(saved)
}

// UpdatePins merges pins into the stored pin map.
func (s *Service) UpdatePins(pins models.PinMap) (models.PinMap, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.Bottles.Load()
	if err != nil {
		return nil, err
	}
	for k, v := range pins {
		cfg.Pins[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	saved, err := s.UpdateConfig(cfg)
	if err != nil {
		return nil, err
	}
	return saved.Pins, nil
}

func (s *Service) apply(cfg models.BottleConfig) error {
	if err := s.Controller.SetPinMap(cfg.Pins); err != nil {
		return fmt.Errorf("apply pin map: %w", err)
	}
	s.Controller.SetSafeMode(cfg.SafeMode)
	return nil
}

// Menu lists the recipes that can be made right now.
func (s *Service) Menu() ([]models.Recipe, error) {
	all, cfg, err := s.catalogue()
	if err != nil {
		return nil, err
	}
	menu := make([]models.Recipe, 0)
	for _, r := range all {
		if resolver.Makeable(r, cfg) {
			menu = append(menu, r)
		}
	}
	return menu, nil
}

// Suggestions lists recipes missing exactly one ingredient, or with
// anyMissing, at least one.
func (s *Service) Suggestions(anyMissing bool) ([]Suggestion, error) {
	all, cfg, err := s.catalogue()
	if err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0)
	for _, r := range all {
		missing := resolver.Missing(r, cfg)
		if len(missing) == 1 || (anyMissing && len(missing) > 1) {
			out = append(out, Suggestion{Recipe: r, Missing: missing})
		}
	}
	return out, nil
}

func (s *Service) catalogue() ([]models.Recipe, models.BottleConfig, error) {
	cfg, err := s.Bottles.Load()
	if err != nil {
		return nil, cfg, err
	}
	all, err := s.Recipes.List()
	return all, cfg, err
}

// Drink returns a recipe with its rig-specific scaling.
func (s *Service) Drink(id string) (Drink, error) {
	cfg, err := s.Bottles.Load()
	if err != nil {
		return Drink{}, err
	}
	r, err := s.Recipes.Get(id)
	if err != nil {
		return Drink{}, err
	}
	missing := resolver.Missing(r, cfg)
	return Drink{
		Recipe:   r,
		Scaled:   scaling.Scale(r, cfg),
		Missing:  missing,
		Makeable: len(missing) == 0,
	}, nil
}

// Make scales and dispenses recipe id. onEvent, if set, sees each event as
// it happens. ctx is checked between actions: a cancelled context stops the
// dispense before the next action, never during one.
func (s *Service) Make(ctx context.Context, id string, onEvent func(dispense.Event)) (*Run, error) {
	if !s.mu.TryLock() {
		return nil, ErrBusy
	}
	defer s.mu.Unlock()
	s.busy.Store(true)
	defer s.busy.Store(false)

	cfg, err := s.Bottles.Load()
	if err != nil {
		return nil, err
	}
	r, err := s.Recipes.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(cfg); err != nil {
		return nil, err
	}

	run := &Run{ID: uuid.NewString(), Recipe: r.Name, Status: models.RunStatusInProgress, SafeMode: cfg.SafeMode}
	log := s.Logger.With(zap.String("run_id", run.ID), zap.String("recipe", r.Name))
	record := &models.DispenseRun{
		RunID:      run.ID,
		RecipeID:   r.ID,
		RecipeName: r.Name,
		StartTime:  time.Now(),
		Status:     string(run.Status),
		SafeMode:   cfg.SafeMode,
	}
	s.saveRun(record, log)
	log.Info("dispense started", zap.Bool("safe_mode", cfg.SafeMode))

	start := time.Now()
	for e := range s.orch.Dispense(scaling.Scale(r, cfg), cfg) {
		run.Events = append(run.Events, e)
		if onEvent != nil {
			onEvent(e)
		}
		if err := s.Publisher.Publish(notify.Message{RunID: run.ID, Recipe: r.Name, At: time.Now(), Event: e}); err != nil {
			log.Warn("event not published", zap.Error(err))
		}

		switch e.Kind {
		case dispense.KindReady:
			run.Status = models.RunStatusReady
		case dispense.KindMissing:
			run.Status = models.RunStatusMissing
			record.FailedItem = e.Item
			if s.Metrics != nil {
				s.Metrics.RecordMissing(e.Item)
			}
		case dispense.KindFault:
			run.Status = models.RunStatusFault
			run.Err = e.Err
			record.FailedItem = e.Item
			s.recordFault(e.Err)
		}
		if !e.Terminal() && ctx.Err() != nil {
			run.Status = models.RunStatusAborted
			run.Err = ctx.Err()
			log.Warn("dispense aborted", zap.Error(ctx.Err()))
			break
		}
	}
	elapsed := time.Since(start)

	record.EndTime = time.Now()
	record.Status = string(run.Status)
	if run.Err != nil {
		record.Error = run.Err.Error()
	}
	s.saveRun(record, log)

	if s.Metrics != nil {
		s.Metrics.RecordDispense(string(run.Status), elapsed)
	}
	s.Board.RecordDispense(r.Name, string(run.Status), elapsed)
	log.Info("dispense finished", zap.String("status", string(run.Status)), zap.Duration("elapsed", elapsed))
	return run, nil
}

// Rotate moves the turret to slot (0-based) outside of a dispense.
func (s *Service) Rotate(slot int) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()

	cfg, err := s.Bottles.Load()
	if err != nil {
		return err
	}
	if err := s.apply(cfg); err != nil {
		return err
	}
	if err := s.Controller.RotateToSlot(slot); err != nil {
		s.recordFault(err)
		return err
	}
	return nil
}

// ResetTurret records the physical turret position after a manual reset.
func (s *Service) ResetTurret(slot int) error {
	if !s.mu.TryLock() {
		return ErrBusy
	}
	defer s.mu.Unlock()
	return s.Controller.ResetPosition(slot)
}

func (s *Service) Status() Status {
	return Status{
		Turret: s.Controller.Status(),
		Busy:   s.busy.Load(),
		Board:  s.Board.Snapshot(),
	}
}

// Runs returns the most recent dispense runs, newest first.
func (s *Service) Runs(limit int) ([]models.DispenseRun, error) {
	runs := make([]models.DispenseRun, 0)
	if s.DB == nil {
		return runs, nil
	}
	if limit <= 0 {
		limit = 50
	}
	err := s.DB.Order("start_time desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// Import refreshes the recipe cache from TheCocktailDB.
func (s *Service) Import(ctx context.Context) (int, error) {
	if s.Importer == nil {
		return 0, errors.New("recipe import is not configured")
	}
	n, err := s.Importer.Sync(ctx, s.Recipes)
	if err != nil {
		return 0, err
	}
	s.Board.Set("recipes_imported_at", time.Now().Format(time.RFC3339))
	return n, nil
}

func (s *Service) recordFault(err error) {
	var fault *hardware.FaultError
	if errors.As(err, &fault) {
		if s.Metrics != nil {
			s.Metrics.RecordFault(fault.Op)
		}
		s.Board.NoteFault(fault)
	}
}

func (s *Service) saveRun(rec *models.DispenseRun, log *zap.Logger) {
	if s.DB == nil {
		return
	}
	if err := s.DB.Save(rec).Error; err != nil {
		log.Warn("dispense run not saved", zap.Error(err))
	}
}
