// Package hardware drives the rotating bottle turret and the push actuator.
package hardware

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"barrobot/internal/models"
)

var (
	// ErrPositionUnknown is returned for real actions after a hardware fault
	// until the operator calls ResetPosition.
	ErrPositionUnknown = errors.New("turret position unknown, manual reset required")
	// ErrInvalidSlot is returned for slots outside [0, SlotCount).
	ErrInvalidSlot = errors.New("slot out of range")
)

// FaultError is a failed physical write. LastSlot is the last position the
// controller believed in and must not be trusted.
type FaultError struct {
	Op       string
	LastSlot int
	Err      error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("hardware fault during %s (last known slot %d): %v", e.Op, e.LastSlot, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// Timing holds the physical constants of the rig.
type Timing struct {
	StepsPerSlot  int
	StepDelay     time.Duration // each half of a step pulse
	PressDuration time.Duration
	PressGap      time.Duration
}

// StepsPerSlot converts a motor's full steps per revolution and the driver's
// microstep setting into pulses per turret slot.
func StepsPerSlot(stepsPerRev, microstep int) int {
	return stepsPerRev * microstep / models.SlotCount
}

// DefaultTiming is a 200 step motor at 1/8 microstepping.
func DefaultTiming() Timing {
	return Timing{
		StepsPerSlot:  StepsPerSlot(200, 8),
		StepDelay:     800 * time.Microsecond,
		PressDuration: 600 * time.Millisecond,
		PressGap:      200 * time.Millisecond,
	}
}

// ActionKind names a physical action.
type ActionKind string

const (
	ActionRotate ActionKind = "rotate"
	ActionPress  ActionKind = "press"
)

// Action is reported to observers after each rotation and each press.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Simulated bool       `json:"simulated"`
	From      int        `json:"from,omitempty"`
	To        int        `json:"to,omitempty"`
	Slots     int        `json:"slots,omitempty"`
	Press     int        `json:"press,omitempty"`
	Of        int        `json:"of,omitempty"`
}

// Status is a snapshot of the controller state.
type Status struct {
	Slot      int           `json:"slot"`
	SafeMode  bool          `json:"safe_mode"`
	GPIOReady bool          `json:"gpio_ready"`
	Faulted   bool          `json:"faulted"`
	Pins      models.PinMap `json:"pins"`
}

// Option configures a Controller.
type Option func(*Controller)

func WithTiming(t Timing) Option { return func(c *Controller) { c.timing = t } }

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

// WithObserver registers fn to receive every Action. fn runs on the caller's
// goroutine while the controller is busy and must not call back into it.
func WithObserver(fn func(Action)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

// WithSleep replaces time.Sleep, mostly for tests.
func WithSleep(fn func(time.Duration)) Option { return func(c *Controller) { c.sleep = fn } }

// Controller owns the turret position and the backend. There must be exactly
// one per physical rig; every action is serialized.
type Controller struct {
	backend   Backend
	timing    Timing
	log       *zap.Logger
	observers []func(Action)
	sleep     func(time.Duration)

	opMu sync.Mutex // held for a whole action

	mu        sync.RWMutex
	slot      int
	safeMode  bool
	gpioReady bool
	faulted   bool
	pins      models.PinMap
	active    models.PinMap // lines handed to the backend, nil when released
}

// NewController starts in safe mode at slot 0 with the default pin map.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:  backend,
		timing:   DefaultTiming(),
		log:      zap.NewNop(),
		sleep:    time.Sleep,
		safeMode: true,
		pins:     models.DefaultPinMap(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Slot:      c.slot,
		SafeMode:  c.safeMode,
		GPIOReady: c.gpioReady,
		Faulted:   c.faulted,
		Pins:      c.pins.Clone(),
	}
}

func (c *Controller) Slot() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slot
}

func (c *Controller) SafeMode() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.safeMode
}

// SetSafeMode takes effect on the next action.
func (c *Controller) SetSafeMode(enabled bool) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	changed := c.safeMode != enabled
	c.safeMode = enabled
	c.mu.Unlock()

	if changed {
		c.log.Info("safe mode changed", zap.Bool("safe_mode", enabled))
	}
}

// SetPinMap merges the changed entries of pins into the current map. If the
// GPIO lines were already set up they are released and re-initialized on
// the next real action. In safe mode nothing is driven here; the old lines
// are released by the next real action or by Cleanup.
func (c *Controller) SetPinMap(pins models.PinMap) error {
	if err := pins.Validate(); err != nil {
		return err
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	changed := false
	for signal, pin := range pins {
		signal = strings.ToUpper(strings.TrimSpace(signal))
		if cur, ok := c.pins[signal]; !ok || cur != pin {
			c.pins[signal] = pin
			changed = true
		}
	}
	ready, safe := c.gpioReady, c.safeMode
	c.mu.Unlock()

	if !changed {
		return nil
	}
	c.log.Info("pin map changed", zap.Any("pins", pins))
	if ready && !safe {
		return c.release()
	}
	return nil
}

// ResetPosition tells the controller where the turret physically is after
// a manual reset and clears a previous fault.
func (c *Controller) ResetPosition(slot int) error {
	if slot < 0 || slot >= models.SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.slot = slot
	c.faulted = false
	c.mu.Unlock()

	c.log.Info("turret position reset", zap.Int("slot", slot))
	return nil
}

// RotateToSlot turns the turret forward until target is under the actuator.
// The turret never reverses, so going from slot 3 to slot 1 travels ten
// slots.
func (c *Controller) RotateToSlot(target int) error {
	if target < 0 || target >= models.SlotCount {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, target)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	from, safe, pins := c.slot, c.safeMode, c.pins.Clone()
	c.mu.RUnlock()

	if target == from {
		return nil
	}
	delta := ((target-from)%models.SlotCount + models.SlotCount) % models.SlotCount

	if safe {
		c.setSlot(target)
		c.log.Debug("simulated rotation", zap.Int("from", from), zap.Int("to", target), zap.Int("slots", delta))
		c.emit(Action{Kind: ActionRotate, Simulated: true, From: from, To: target, Slots: delta})
		return nil
	}

	if err := c.ensureGPIO(pins); err != nil {
		return err
	}
	if err := c.backend.DriveStepPulse(pins[models.SignalDir], High); err != nil {
		return c.fault("rotate", err)
	}
	pulses := delta * c.timing.StepsPerSlot
	for i := 0; i < pulses; i++ {
		if err := c.backend.DriveStepPulse(pins[models.SignalStep], High); err != nil {
			return c.fault("rotate", err)
		}
		c.sleep(c.timing.StepDelay)
		if err := c.backend.DriveStepPulse(pins[models.SignalStep], Low); err != nil {
			return c.fault("rotate", err)
		}
		c.sleep(c.timing.StepDelay)
	}
	c.setSlot(target)

	c.log.Debug("rotated", zap.Int("from", from), zap.Int("to", target), zap.Int("pulses", pulses))
	c.emit(Action{Kind: ActionRotate, From: from, To: target, Slots: delta})
	return nil
}

// PressActuator pushes the actuator n times. n is not checked against any
// quantity.
func (c *Controller) PressActuator(n int) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	safe, pins := c.safeMode, c.pins.Clone()
	c.mu.RUnlock()

	if n <= 0 {
		return nil
	}

	if safe {
		for i := 1; i <= n; i++ {
			c.log.Debug("simulated press", zap.Int("press", i), zap.Int("of", n))
			c.emit(Action{Kind: ActionPress, Simulated: true, Press: i, Of: n})
		}
		return nil
	}

	if err := c.ensureGPIO(pins); err != nil {
		return err
	}
	act := pins[models.SignalActuator]
	for i := 1; i <= n; i++ {
		if err := c.backend.DriveActuator(act, High); err != nil {
			return c.fault("press", err)
		}
		c.sleep(c.timing.PressDuration)
		if err := c.backend.DriveActuator(act, Low); err != nil {
			return c.fault("press", err)
		}
		c.sleep(c.timing.PressGap)

		c.log.Debug("pressed", zap.Int("press", i), zap.Int("of", n))
		c.emit(Action{Kind: ActionPress, Press: i, Of: n})
	}
	return nil
}

// Cleanup de-energizes the driver and releases the GPIO lines. It is safe to
// call any number of times.
func (c *Controller) Cleanup() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	held := c.active != nil
	c.mu.RUnlock()
	if !held {
		return nil
	}
	return c.release()
}

func (c *Controller) ensureGPIO(pins models.PinMap) error {
	c.mu.RLock()
	ready, faulted, active := c.gpioReady, c.faulted, c.active
	c.mu.RUnlock()

	if faulted {
		return ErrPositionUnknown
	}
	if ready && maps.Equal(active, pins) {
		return nil
	}
	if active != nil {
		// pin map changed while in safe mode
		if err := c.release(); err != nil {
			return c.fault("release", err)
		}
	}

	c.mu.Lock()
	c.active = pins.Clone()
	c.mu.Unlock()
	if err := c.backend.ConfigurePins(pins); err != nil {
		// a partial configure may already hold ENABLE low
		return c.fault("configure", err)
	}
	c.mu.Lock()
	c.gpioReady = true
	c.mu.Unlock()

	if err := c.backend.DriveStepPulse(pins[models.SignalEnable], Low); err != nil {
		return c.fault("enable", err)
	}
	c.log.Info("gpio initialized", zap.Any("pins", pins))
	return nil
}

// release de-energizes the driver on the lines last handed to the backend.
// It must be called with opMu held.
func (c *Controller) release() error {
	c.mu.Lock()
	enable := c.pins[models.SignalEnable]
	if c.active != nil {
		enable = c.active[models.SignalEnable]
	}
	c.gpioReady = false
	c.active = nil
	c.mu.Unlock()

	err := multierr.Combine(
		c.backend.DriveStepPulse(enable, High),
		c.backend.ReleaseAll(),
	)
	if err != nil {
		c.log.Warn("gpio release failed", zap.Error(err))
		return err
	}
	c.log.Info("gpio released")
	return nil
}

func (c *Controller) fault(op string, err error) error {
	c.mu.Lock()
	c.faulted = true
	last := c.slot
	held := c.active != nil
	c.mu.Unlock()

	if held {
		err = multierr.Append(err, c.release())
	}
	c.log.Error("hardware fault", zap.String("op", op), zap.Int("last_slot", last), zap.Error(err))
	return &FaultError{Op: op, LastSlot: last, Err: err}
}

func (c *Controller) setSlot(slot int) {
	c.mu.Lock()
	c.slot = slot
	c.mu.Unlock()
}

func (c *Controller) emit(a Action) {
	for _, fn := range c.observers {
		fn(a)
	}
}
