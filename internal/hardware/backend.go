package hardware

import (
	"barrobot/internal/models"
)

// Level is the logical state of an output line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Backend drives the physical output lines. The controller only ever talks
// to the rig through these four calls, so a real GPIO implementation and a
// no-op one are interchangeable.
type Backend interface {
	// ConfigurePins sets every pin of the map up as an output.
	ConfigurePins(pins models.PinMap) error
	// DriveStepPulse sets a line of the stepper driver (step, direction or enable).
	DriveStepPulse(pin int, level Level) error
	// DriveActuator sets the push-actuator line.
	DriveActuator(pin int, level Level) error
	// ReleaseAll returns every configured line to its idle state and frees it.
	ReleaseAll() error
}

// NoopBackend accepts every call and does nothing. It is used on development
// machines without GPIO.
type NoopBackend struct{}

var _ Backend = NoopBackend{}

func (NoopBackend) ConfigurePins(models.PinMap) error { return nil }
func (NoopBackend) DriveStepPulse(int, Level) error   { return nil }
func (NoopBackend) DriveActuator(int, Level) error    { return nil }
func (NoopBackend) ReleaseAll() error                 { return nil }
