package hardware

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"barrobot/internal/models"
)

// PeriphBackend drives Raspberry Pi GPIO lines through periph.io. Pins are
// addressed by BCM number.
type PeriphBackend struct {
	mu    sync.Mutex
	once  sync.Once
	err   error
	lines map[int]gpio.PinIO
}

var _ Backend = (*PeriphBackend)(nil)

// NewPeriphBackend returns a backend that initializes the host drivers on
// first use.
func NewPeriphBackend() *PeriphBackend {
	return &PeriphBackend{lines: make(map[int]gpio.PinIO)}
}

func (b *PeriphBackend) ConfigurePins(pins models.PinMap) error {
	b.once.Do(func() {
		if _, err := host.Init(); err != nil {
			b.err = fmt.Errorf("periph host init: %w", err)
		}
	})
	if b.err != nil {
		return b.err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for signal, n := range pins {
		p := gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
		if p == nil {
			return fmt.Errorf("%s: no such pin GPIO%d", signal, n)
		}
		level := gpio.Low
		if signal == models.SignalEnable {
			// the controller enables the driver itself
			level = gpio.High
		}
		if err := p.Out(level); err != nil {
			return fmt.Errorf("%s: configure GPIO%d: %w", signal, n, err)
		}
		b.lines[n] = p
	}
	return nil
}

func (b *PeriphBackend) DriveStepPulse(pin int, level Level) error {
	return b.drive(pin, level)
}

func (b *PeriphBackend) DriveActuator(pin int, level Level) error {
	return b.drive(pin, level)
}

// ReleaseAll turns every configured line back into a floating input. Lines
// are not driven low first: ENABLE is low-active.
func (b *PeriphBackend) ReleaseAll() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs error
	for n, p := range b.lines {
		errs = multierr.Append(errs, p.In(gpio.PullNoChange, gpio.NoEdge))
		errs = multierr.Append(errs, p.Halt())
		delete(b.lines, n)
	}
	return errs
}

func (b *PeriphBackend) drive(pin int, level Level) error {
	b.mu.Lock()
	p, ok := b.lines[pin]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("GPIO%d is not configured", pin)
	}
	return p.Out(gpio.Level(level))
}
