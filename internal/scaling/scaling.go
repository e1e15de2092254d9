// Package scaling adjusts recipe quantities: first so the smallest pour is
// one reference shot, then so every bottle pour is a whole number of
// actuator presses.
package scaling

import (
	"math"

	"barrobot/internal/measure"
	"barrobot/internal/models"
)

// NearestMultiple returns the multiple of step closest to value. A value
// exactly halfway between two multiples goes to the lower one, so with
// step 1.5: 2.25 -> 1.5, 2.99 -> 3.0, 3.76 -> 4.5.
func NearestMultiple(value, step float64) float64 {
	n := math.Ceil(value/step - 0.5)
	if n == 0 {
		// Ceil of a value in (-1, 0) is -0
		return 0
	}
	return n * step
}

// NormalizeToReference scales liquid lines so the smallest positive quantity
// equals reference. Garnish lines (QtyOz == 0) are untouched. The input is
// modified in place and returned.
func NormalizeToReference(lines []models.IngredientLine, reference float64) []models.IngredientLine {
	smallest := math.Inf(1)
	for _, l := range lines {
		if l.QtyOz > 0 && l.QtyOz < smallest {
			smallest = l.QtyOz
		}
	}
	if math.IsInf(smallest, 1) {
		return lines
	}

	factor := reference / smallest
	for i := range lines {
		if lines[i].QtyOz > 0 {
			lines[i].QtyOz = measure.Round2(lines[i].QtyOz * factor)
		}
	}
	return lines
}

// ForSlots rescales a recipe onto the dispenser's shot granularity. The
// largest liquid held in a slot (the anchor) is moved to its nearest shot
// multiple; every other liquid follows by the same factor, and slot liquids
// are additionally snapped to whole shots. Pantry liquids are scaled but not
// quantized since they are poured by hand. A new slice is returned.
func ForSlots(lines []models.IngredientLine, cfg models.BottleConfig) []models.IngredientLine {
	shot := cfg.ShotSizeOz
	if shot <= 0 {
		shot = models.DefaultShotOz
	}

	inSlot := make(map[string]bool, len(cfg.Slots))
	for _, s := range cfg.Slots {
		if s != "" {
			inSlot[models.NormalizeName(s)] = true
		}
	}

	anchor := 0.0
	for _, l := range lines {
		if l.QtyOz > 0 && inSlot[models.NormalizeName(l.Item)] && l.QtyOz > anchor {
			anchor = l.QtyOz
		}
	}
	if anchor == 0 {
		return lines
	}

	target := NearestMultiple(anchor, shot)
	if target == 0 {
		target = shot
	}
	factor := target / anchor

	scaled := make([]models.IngredientLine, len(lines))
	for i, l := range lines {
		scaled[i] = l
		if l.QtyOz <= 0 {
			continue
		}
		q := l.QtyOz * factor
		if inSlot[models.NormalizeName(l.Item)] {
			q = NearestMultiple(q, shot)
		}
		scaled[i].QtyOz = measure.Round2(q)
	}
	return scaled
}

// Scale runs both passes on a copy of r: normalize to one default shot,
// then the slot-aware rescale against cfg.
func Scale(r models.Recipe, cfg models.BottleConfig) models.Recipe {
	out := r.Clone()
	out.Ingredients = NormalizeToReference(out.Ingredients, models.DefaultShotOz)
	out.Ingredients = ForSlots(out.Ingredients, cfg)
	return out
}
