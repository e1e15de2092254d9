package bar

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"barrobot/internal/config"
	"barrobot/internal/database"
	"barrobot/internal/dispense"
	"barrobot/internal/hardware"
	"barrobot/internal/models"
	"barrobot/internal/monitoring"
	"barrobot/internal/notify"
	"barrobot/internal/recipes"
)

type flakyActuator struct {
	hardware.NoopBackend
}

func (flakyActuator) DriveActuator(int, hardware.Level) error {
	return errors.New("actuator jammed")
}

type capturePublisher struct {
	messages []notify.Message
}

func (c *capturePublisher) Publish(m notify.Message) error {
	c.messages = append(c.messages, m)
	return nil
}

func (c *capturePublisher) Close() {}

func newTestService(t *testing.T, backend hardware.Backend) (*Service, *capturePublisher) {
	t.Helper()
	db, err := database.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := recipes.NewStore(db)
	require.NoError(t, store.ReplaceAll([]models.Recipe{
		{ID: "1", Name: "Martini", Ingredients: []models.IngredientLine{{Item: "gin", QtyOz: 6}, {Item: "dry vermouth", QtyOz: 1.5}}},
		{ID: "2", Name: "Negroni", Ingredients: []models.IngredientLine{{Item: "gin", QtyOz: 1.5}, {Item: "campari", QtyOz: 1.5}, {Item: "sweet vermouth", QtyOz: 1.5}}},
		{ID: "3", Name: "Screwdriver", Ingredients: []models.IngredientLine{{Item: "vodka", QtyOz: 1.5}, {Item: "orange juice", QtyOz: 4.5}}},
	}))

	bottles := config.NewBottleStore(filepath.Join(t.TempDir(), "bottles.yaml"))
	cfg := models.DefaultBottleConfig()
	cfg.Slots[0] = "gin"
	cfg.Slots[1] = "campari"
	cfg.Pantry = []string{"dry vermouth"}
	_, err = bottles.Save(cfg)
	require.NoError(t, err)

	timing := hardware.DefaultTiming()
	timing.StepsPerSlot = 1
	ctrl := hardware.NewController(backend,
		hardware.WithTiming(timing),
		hardware.WithSleep(func(time.Duration) {}),
	)

	pub := &capturePublisher{}
	svc := NewService(Deps{
		Recipes:    store,
		Bottles:    bottles,
		Controller: ctrl,
		DB:         db,
		Publisher:  pub,
		Metrics:    monitoring.NewMetrics(),
		Logger:     zaptest.NewLogger(t),
	})
	return svc, pub
}

func TestMenuAndSuggestions(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})

	menu, err := svc.Menu()
	require.NoError(t, err)
	require.Len(t, menu, 1)
	assert.Equal(t, "Martini", menu[0].Name)

	one, err := svc.Suggestions(false)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "Negroni", one[0].Recipe.Name)
	assert.Equal(t, []string{"sweet vermouth"}, one[0].Missing)

	all, err := svc.Suggestions(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDrink(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})

	d, err := svc.Drink("2")
	require.NoError(t, err)
	assert.False(t, d.Makeable)
	assert.Equal(t, []string{"sweet vermouth"}, d.Missing)

	_, err = svc.Drink("404")
	assert.ErrorIs(t, err, recipes.ErrNotFound)
}

func TestMakeInSafeMode(t *testing.T) {
	svc, pub := newTestService(t, hardware.NoopBackend{})

	var seen []dispense.Kind
	run, err := svc.Make(context.Background(), "1", func(e dispense.Event) { seen = append(seen, e.Kind) })
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusReady, run.Status)
	assert.True(t, run.SafeMode)
	assert.Equal(t, []dispense.Kind{dispense.KindPulling, dispense.KindDispensing, dispense.KindAdding, dispense.KindManualAdd, dispense.KindReady}, seen)
	assert.Len(t, pub.messages, len(seen))
	assert.Equal(t, run.ID, pub.messages[0].RunID)

	runs, err := svc.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].RunID)
	assert.Equal(t, string(models.RunStatusReady), runs[0].Status)

	assert.Equal(t, 1, svc.Status().Board["dispenses_ready"])
	assert.Equal(t, 0, svc.Controller.Slot())
}

func TestMakeMissing(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})

	run, err := svc.Make(context.Background(), "2", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusMissing, run.Status)
	require.Len(t, run.Events, 1)
	assert.Equal(t, "sweet vermouth", run.Events[0].Item)

	runs, err := svc.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "sweet vermouth", runs[0].FailedItem)
}

func TestMakeUnknownRecipe(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})
	_, err := svc.Make(context.Background(), "404", nil)
	assert.ErrorIs(t, err, recipes.ErrNotFound)
}

func TestMakeBusy(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})

	svc.mu.Lock()
	_, err := svc.Make(context.Background(), "1", nil)
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, svc.Rotate(3), ErrBusy)
	svc.mu.Unlock()

	_, err = svc.Make(context.Background(), "1", nil)
	assert.NoError(t, err)
}

func TestMakeHardwareFault(t *testing.T) {
	svc, _ := newTestService(t, flakyActuator{})

	cfg, err := svc.Config()
	require.NoError(t, err)
	cfg.SafeMode = false
	_, err = svc.UpdateConfig(cfg)
	require.NoError(t, err)

	run, err := svc.Make(context.Background(), "1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFault, run.Status)

	var fault *hardware.FaultError
	require.ErrorAs(t, run.Err, &fault)
	assert.Equal(t, "press", fault.Op)

	st := svc.Status()
	assert.True(t, st.Turret.Faulted)
	assert.Contains(t, st.Board, "last_fault")

	_, err = svc.Make(context.Background(), "1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.ResetTurret(0))
	assert.False(t, svc.Status().Turret.Faulted)
}

func TestMakeStopsWhenContextIsDone(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})

	ctx, cancel := context.WithCancel(context.Background())
	run, err := svc.Make(ctx, "1", func(e dispense.Event) {
		if e.Kind == dispense.KindPulling {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusAborted, run.Status)
	assert.Len(t, run.Events, 1)
}

func TestUpdatePinsAndRotate(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})

	pins, err := svc.UpdatePins(models.PinMap{"actuator": 19})
	require.NoError(t, err)
	assert.Equal(t, 19, pins[models.SignalActuator])
	assert.Equal(t, 19, svc.Status().Turret.Pins[models.SignalActuator])

	_, err = svc.UpdatePins(models.PinMap{"LED": 1})
	assert.Error(t, err)

	require.NoError(t, svc.Rotate(5))
	assert.Equal(t, 5, svc.Controller.Slot())
	assert.ErrorIs(t, svc.Rotate(12), hardware.ErrInvalidSlot)
}

func TestImportWithoutImporter(t *testing.T) {
	svc, _ := newTestService(t, hardware.NoopBackend{})
	_, err := svc.Import(context.Background())
	assert.Error(t, err)
}
