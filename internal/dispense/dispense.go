// Package dispense turns a scaled recipe into turret rotations, actuator
// presses and operator prompts, reported as a stream of events.
package dispense

import (
	"fmt"
	"iter"
	"math"

	"go.uber.org/zap"

	"barrobot/internal/models"
	"barrobot/internal/resolver"
)

// Kind tags an Event.
type Kind string

const (
	KindMissing    Kind = "missing"
	KindPulling    Kind = "pulling"
	KindAdding     Kind = "adding"
	KindDispensing Kind = "dispensing"
	KindManualAdd  Kind = "manual_add"
	KindReady      Kind = "ready"
	KindFault      Kind = "fault"
)

// Event is one step of a dispense. Missing, Ready and Fault are terminal.
type Event struct {
	Kind    Kind    `json:"kind"`
	Index   int     `json:"index"`
	Item    string  `json:"item,omitempty"`
	QtyOz   float64 `json:"qty_oz,omitempty"`
	Slot    *int    `json:"slot,omitempty"`
	Presses int     `json:"presses,omitempty"`
	Message string  `json:"message"`
	Error   string  `json:"error,omitempty"`

	Err error `json:"-"`
}

// Terminal reports whether no event follows e.
func (e Event) Terminal() bool {
	return e.Kind == KindMissing || e.Kind == KindReady || e.Kind == KindFault
}

// Turret is the part of the hardware controller a dispense needs.
type Turret interface {
	RotateToSlot(slot int) error
	PressActuator(n int) error
}

// Orchestrator runs dispenses against a single turret. Callers serialize
// dispenses; the orchestrator holds no lock of its own.
type Orchestrator struct {
	turret Turret
	log    *zap.Logger
}

func NewOrchestrator(t Turret, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{turret: t, log: log}
}

// Dispense returns the events of making r with cfg. Nothing happens until
// the sequence is ranged over; each physical action runs while the
// consumer waits for the next event. Stopping the range early prevents any
// further action but does not interrupt one in flight. A sequence should be
// consumed once.
//
// Availability of every ingredient is checked before the first action, so a
// missing ingredient never leaves a half-made drink.
func (o *Orchestrator) Dispense(r models.Recipe, cfg models.BottleConfig) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		log := o.log.With(zap.String("recipe", r.Name))

		for i, line := range r.Ingredients {
			if !resolver.Available(line.Item, cfg) {
				log.Info("missing ingredient", zap.String("item", line.Item))
				yield(Event{
					Kind:    KindMissing,
					Index:   i,
					Item:    line.Item,
					Message: fmt.Sprintf("Missing %s", line.Item),
				})
				return
			}
		}

		for i, line := range r.Ingredients {
			kind, verb := KindAdding, "Adding"
			if i == 0 {
				kind, verb = KindPulling, "Pulling"
			}
			if !yield(Event{Kind: kind, Index: i, Item: line.Item, QtyOz: line.QtyOz, Message: fmt.Sprintf("%s %s…", verb, line.Item)}) {
				return
			}

			slot, ok := resolver.SlotFor(line.Item, cfg)
			if !ok {
				if !yield(Event{
					Kind:    KindManualAdd,
					Index:   i,
					Item:    line.Item,
					QtyOz:   line.QtyOz,
					Message: fmt.Sprintf("(Pantry) Please add %s oz %s manually.", formatQty(line.QtyOz), line.Item),
				}) {
					return
				}
				continue
			}

			if err := o.turret.RotateToSlot(slot); err != nil {
				yield(o.faultEvent(i, line, slot, err))
				return
			}

			presses := o.presses(line, cfg.ShotSizeOz)
			if !yield(Event{
				Kind:    KindDispensing,
				Index:   i,
				Item:    line.Item,
				QtyOz:   line.QtyOz,
				Slot:    &slot,
				Presses: presses,
				Message: fmt.Sprintf("Dispensing %s oz!", formatQty(line.QtyOz)),
			}) {
				return
			}

			if err := o.turret.PressActuator(presses); err != nil {
				yield(o.faultEvent(i, line, slot, err))
				return
			}
		}

		yield(Event{Kind: KindReady, Index: len(r.Ingredients), Message: fmt.Sprintf("%s is ready! Cheers!", r.Name)})
	}
}

// Run drains Dispense and returns every event.
func (o *Orchestrator) Run(r models.Recipe, cfg models.BottleConfig) []Event {
	var events []Event
	for e := range o.Dispense(r, cfg) {
		events = append(events, e)
	}
	return events
}

// presses converts a quantity to whole shots. Scaling already snaps slot
// liquids to shot multiples, so anything else is logged.
func (o *Orchestrator) presses(line models.IngredientLine, shot float64) int {
	if shot <= 0 {
		shot = models.DefaultShotOz
	}
	shots := line.QtyOz / shot
	n := int(math.Round(shots))
	if math.Abs(shots-float64(n)) > 0.01 {
		o.log.Warn("quantity is not a whole number of shots",
			zap.String("item", line.Item),
			zap.Float64("qty_oz", line.QtyOz),
			zap.Float64("shot_oz", shot),
			zap.Int("presses", n))
	}
	return n
}

func (o *Orchestrator) faultEvent(i int, line models.IngredientLine, slot int, err error) Event {
	o.log.Error("dispense aborted", zap.String("item", line.Item), zap.Int("slot", slot), zap.Error(err))
	return Event{
		Kind:    KindFault,
		Index:   i,
		Item:    line.Item,
		Slot:    &slot,
		Message: fmt.Sprintf("Hardware fault while dispensing %s", line.Item),
		Error:   err.Error(),
		Err:     err,
	}
}

func formatQty(q float64) string {
	return fmt.Sprintf("%g", q)
}
