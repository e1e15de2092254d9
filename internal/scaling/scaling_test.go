package scaling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"barrobot/internal/models"
)

func rig(slots ...string) models.BottleConfig {
	cfg := models.DefaultBottleConfig()
	copy(cfg.Slots, slots)
	return cfg
}

func TestNearestMultiple(t *testing.T) {
	tests := []struct {
		value, step, want float64
	}{
		{2.25, 1.5, 1.5},
		{2.99, 1.5, 3.0},
		{3.76, 1.5, 4.5},
		{0.75, 1.5, 0},
		{0.76, 1.5, 1.5},
		{6.0, 1.5, 6.0},
		{0, 1.5, 0},
		{1.5, 1, 1},
		{2.5, 1, 2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NearestMultiple(tt.value, tt.step), 1e-9, "NearestMultiple(%g, %g)", tt.value, tt.step)
	}
}

func TestNearestMultipleNeverNegativeZero(t *testing.T) {
	for _, v := range []float64{0, 0.1, 0.5, 0.75} {
		assert.False(t, math.Signbit(NearestMultiple(v, 1.5)), "NearestMultiple(%g, 1.5)", v)
	}
}

func TestNormalizeToReference(t *testing.T) {
	lines := []models.IngredientLine{
		{Item: "gin", QtyOz: 2.0},
		{Item: "lemon", QtyOz: 0},
		{Item: "vermouth", QtyOz: 0.5},
		{Item: "bitters", QtyOz: 1.0},
	}

	got := NormalizeToReference(lines, 1.5)

	assert.Equal(t, 6.0, got[0].QtyOz)
	assert.Equal(t, 0.0, got[1].QtyOz, "garnish must stay zero")
	assert.Equal(t, 1.5, got[2].QtyOz)
	assert.Equal(t, 3.0, got[3].QtyOz)
}

func TestNormalizeToReferencePreservesRatiosAndMinimum(t *testing.T) {
	cases := [][]float64{
		{0.33, 1.01, 2.5},
		{1.5},
		{4, 4, 4},
		{0.25, 0, 3.75, 1},
	}
	for _, qs := range cases {
		lines := make([]models.IngredientLine, len(qs))
		for i, q := range qs {
			lines[i] = models.IngredientLine{Item: "x", QtyOz: q}
		}
		orig := append([]models.IngredientLine(nil), lines...)

		got := NormalizeToReference(lines, 1.5)

		smallest := 0.0
		for _, l := range got {
			if l.QtyOz > 0 && (smallest == 0 || l.QtyOz < smallest) {
				smallest = l.QtyOz
			}
		}
		assert.InDelta(t, 1.5, smallest, 0.01, "%v", qs)

		for i := range got {
			for j := range got {
				if orig[i].QtyOz == 0 || orig[j].QtyOz == 0 {
					continue
				}
				assert.InDelta(t, orig[i].QtyOz/orig[j].QtyOz, got[i].QtyOz/got[j].QtyOz, 0.05, "%v", qs)
			}
		}
	}
}

func TestNormalizeToReferenceIdempotent(t *testing.T) {
	lines := []models.IngredientLine{{Item: "a", QtyOz: 0.33}, {Item: "b", QtyOz: 1.2}, {Item: "c"}}
	once := append([]models.IngredientLine(nil), NormalizeToReference(lines, 1.5)...)
	twice := NormalizeToReference(append([]models.IngredientLine(nil), once...), 1.5)
	assert.Equal(t, once, twice)
}

func TestNormalizeToReferenceAllGarnish(t *testing.T) {
	lines := []models.IngredientLine{{Item: "mint"}, {Item: "lime"}}
	assert.Equal(t, lines, NormalizeToReference(lines, 1.5))
}

func TestForSlots(t *testing.T) {
	t.Run("no slot liquids leaves lines alone", func(t *testing.T) {
		lines := []models.IngredientLine{{Item: "gin", QtyOz: 2.2}}
		assert.Equal(t, lines, ForSlots(lines, rig("vodka")))
	})

	t.Run("anchor snaps and pantry scales proportionally", func(t *testing.T) {
		lines := []models.IngredientLine{
			{Item: "rum", QtyOz: 2.0},
			{Item: "lime juice", QtyOz: 1.0},
			{Item: "mint", QtyOz: 0},
		}
		got := ForSlots(lines, rig("rum"))
		// anchor 2.0 -> 1.5, factor 0.75
		assert.Equal(t, 1.5, got[0].QtyOz)
		assert.Equal(t, 0.75, got[1].QtyOz)
		assert.Equal(t, 0.0, got[2].QtyOz)
		assert.Equal(t, 2.0, lines[0].QtyOz, "input must not be mutated")
	})

	t.Run("zero target is forced to one shot", func(t *testing.T) {
		lines := []models.IngredientLine{{Item: "gin", QtyOz: 0.5}}
		got := ForSlots(lines, rig("gin"))
		assert.Equal(t, 1.5, got[0].QtyOz)
	})

	t.Run("secondary slot liquids are quantized", func(t *testing.T) {
		lines := []models.IngredientLine{
			{Item: "gin", QtyOz: 4.5},
			{Item: "campari", QtyOz: 2.0},
		}
		got := ForSlots(lines, rig("gin", "campari"))
		assert.Equal(t, 4.5, got[0].QtyOz)
		assert.Equal(t, 1.5, got[1].QtyOz)
	})

	t.Run("uses configured shot size", func(t *testing.T) {
		cfg := rig("gin")
		cfg.ShotSizeOz = 1.0
		got := ForSlots([]models.IngredientLine{{Item: "GIN", QtyOz: 2.6}}, cfg)
		assert.Equal(t, 3.0, got[0].QtyOz)
	})

	t.Run("tiny secondary liquid rounds to plain zero", func(t *testing.T) {
		lines := []models.IngredientLine{
			{Item: "gin", QtyOz: 6.0},
			{Item: "vermouth", QtyOz: 0.5},
		}
		got := ForSlots(lines, rig("gin", "vermouth"))
		assert.Equal(t, 6.0, got[0].QtyOz)
		assert.Equal(t, 0.0, got[1].QtyOz)
		assert.False(t, math.Signbit(got[1].QtyOz))
	})
}

func TestScaleEndToEnd(t *testing.T) {
	r := models.Recipe{
		ID:   "11728",
		Name: "Martini",
		Ingredients: []models.IngredientLine{
			{Item: "gin", QtyOz: 2.0},
			{Item: "vermouth", QtyOz: 0.5},
		},
	}

	got := Scale(r, rig("gin"))

	require.Len(t, got.Ingredients, 2)
	assert.Equal(t, 6.0, got.Ingredients[0].QtyOz)
	assert.Equal(t, 1.5, got.Ingredients[1].QtyOz)
	assert.Equal(t, 2.0, r.Ingredients[0].QtyOz, "cached recipe must not change")
}
