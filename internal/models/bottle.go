package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// SlotCount is the number of turret positions.
const SlotCount = 12

const (
	// DefaultShotOz is one actuator press and the normalization reference.
	DefaultShotOz = 1.5
	// MinShotOz is the smallest shot size accepted from configuration.
	MinShotOz = 0.5
)

// Signal names of the pin map.
const (
	SignalDir      = "DIR"
	SignalStep     = "STEP"
	SignalEnable   = "ENABLE"
	SignalActuator = "ACTUATOR"
)

// Signals lists every signal a pin map must carry.
var Signals = []string{SignalDir, SignalStep, SignalEnable, SignalActuator}

// PinMap maps a signal name to a BCM pin number.
type PinMap map[string]int

// DefaultPinMap returns the stock wiring of the rig.
func DefaultPinMap() PinMap {
	return PinMap{
		SignalDir:      20,
		SignalStep:     21,
		SignalEnable:   16, // low-active on most DM542T variants
		SignalActuator: 26,
	}
}

// Clone copies the map.
func (p PinMap) Clone() PinMap {
	out := make(PinMap, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Validate rejects unknown signals and negative pins.
func (p PinMap) Validate() error {
	known := make(map[string]bool, len(Signals))
	for _, s := range Signals {
		known[s] = true
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !known[strings.ToUpper(k)] {
			return fmt.Errorf("unknown signal %q", k)
		}
		if p[k] < 0 {
			return fmt.Errorf("signal %s: invalid pin %d", k, p[k])
		}
	}
	return nil
}

// BottleConfig describes what is loaded on the rig and how it is wired.
type BottleConfig struct {
	ShotSizeOz    float64           `yaml:"shot_size" json:"shot_size"`
	Slots         []string          `yaml:"slots" json:"slots"`
	Pantry        []string          `yaml:"pantry" json:"pantry"`
	Substitutions map[string]string `yaml:"substitutions" json:"substitutions"`
	SafeMode      bool              `yaml:"safe_mode" json:"safe_mode"`
	Pins          PinMap            `yaml:"pins" json:"pins"`
}

// DefaultBottleConfig is an empty rig in safe mode.
func DefaultBottleConfig() BottleConfig {
	return BottleConfig{
		ShotSizeOz:    DefaultShotOz,
		Slots:         make([]string, SlotCount),
		Pantry:        []string{},
		Substitutions: map[string]string{},
		SafeMode:      true,
		Pins:          DefaultPinMap(),
	}
}

// Normalize lowercases names, pads or truncates slots to SlotCount, fills
// missing pins from the defaults and clamps the shot size.
func (c *BottleConfig) Normalize() {
	switch {
	case c.ShotSizeOz == 0 || math.IsNaN(c.ShotSizeOz):
		c.ShotSizeOz = DefaultShotOz
	case c.ShotSizeOz < MinShotOz:
		c.ShotSizeOz = MinShotOz
	}

	slots := make([]string, SlotCount)
	for i := 0; i < SlotCount && i < len(c.Slots); i++ {
		slots[i] = NormalizeName(c.Slots[i])
	}
	c.Slots = slots

	pantry := make([]string, 0, len(c.Pantry))
	for _, p := range c.Pantry {
		if n := NormalizeName(p); n != "" {
			pantry = append(pantry, n)
		}
	}
	c.Pantry = pantry

	subs := make(map[string]string, len(c.Substitutions))
	for k, v := range c.Substitutions {
		k, v = NormalizeName(k), NormalizeName(v)
		if k != "" && v != "" {
			subs[k] = v
		}
	}
	c.Substitutions = subs

	pins := DefaultPinMap()
	for k, v := range c.Pins {
		pins[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	c.Pins = pins
}

// Validate checks what Normalize cannot repair.
func (c BottleConfig) Validate() error {
	if c.ShotSizeOz <= 0 {
		return fmt.Errorf("shot size must be positive, got %g", c.ShotSizeOz)
	}
	if len(c.Slots) != SlotCount {
		return fmt.Errorf("expected %d slots, got %d", SlotCount, len(c.Slots))
	}
	return c.Pins.Validate()
}

// Clone returns a deep copy.
func (c BottleConfig) Clone() BottleConfig {
	out := c
	out.Slots = append([]string(nil), c.Slots...)
	out.Pantry = append([]string(nil), c.Pantry...)
	out.Substitutions = make(map[string]string, len(c.Substitutions))
	for k, v := range c.Substitutions {
		out.Substitutions[k] = v
	}
	out.Pins = c.Pins.Clone()
	return out
}
