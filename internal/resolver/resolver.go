// Package resolver decides where an ingredient comes from: a turret slot,
// the pantry, or a one-hop substitution onto either.
package resolver

import (
	"slices"

	"barrobot/internal/models"
)

// Available reports whether item can be served with cfg. Substitutions are
// followed one hop only; a target that is itself only reachable through
// another substitution counts as unavailable.
func Available(item string, cfg models.BottleConfig) bool {
	item = models.NormalizeName(item)
	if stocked(item, cfg) {
		return true
	}
	sub, ok := cfg.Substitutions[item]
	return ok && sub != "" && stocked(sub, cfg)
}

// SlotFor returns the turret slot holding item (or its substitute). ok is
// false for pantry items, which the operator adds by hand.
func SlotFor(item string, cfg models.BottleConfig) (slot int, ok bool) {
	item = models.NormalizeName(item)
	if i := slotIndex(item, cfg); i >= 0 {
		return i, true
	}
	if sub, found := cfg.Substitutions[item]; found && sub != "" {
		if i := slotIndex(sub, cfg); i >= 0 {
			return i, true
		}
	}
	return 0, false
}

// Missing lists the recipe's ingredients that cannot be served, in recipe order.
func Missing(r models.Recipe, cfg models.BottleConfig) []string {
	var missing []string
	for _, l := range r.Ingredients {
		if !Available(l.Item, cfg) {
			missing = append(missing, l.Item)
		}
	}
	return missing
}

// Makeable reports whether every ingredient of r is available.
func Makeable(r models.Recipe, cfg models.BottleConfig) bool {
	for _, l := range r.Ingredients {
		if !Available(l.Item, cfg) {
			return false
		}
	}
	return true
}

func stocked(item string, cfg models.BottleConfig) bool {
	return slotIndex(item, cfg) >= 0 || slices.Contains(cfg.Pantry, item)
}

func slotIndex(item string, cfg models.BottleConfig) int {
	if item == "" {
		return -1
	}
	return slices.Index(cfg.Slots, item)
}
