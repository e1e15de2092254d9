package models

import (
	"encoding/json"
	"strings"

	"github.com/jinzhu/gorm"
)

// IngredientLine is one (ingredient, quantity) pair of a recipe.
// QtyOz == 0 marks a garnish or other non-liquid entry.
type IngredientLine struct {
	Item  string  `json:"item"`
	QtyOz float64 `json:"qty_oz"`
	Raw   string  `json:"raw,omitempty"`
}

// Recipe is an ordered list of ingredient lines. The order is the dispense order.
type Recipe struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Image        string           `json:"image,omitempty"`
	Instructions string           `json:"instructions"`
	Ingredients  []IngredientLine `json:"ingredients"`
}

// Clone returns a deep copy so scaling passes never touch the cached recipe.
func (r Recipe) Clone() Recipe {
	out := r
	out.Ingredients = make([]IngredientLine, len(r.Ingredients))
	copy(out.Ingredients, r.Ingredients)
	return out
}

// NormalizeName lowercases and trims an ingredient name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RecipeRecord is the persisted form of a Recipe in the recipe cache
type RecipeRecord struct {
	gorm.Model
	DrinkID         string `gorm:"unique_index"`
	Name            string `gorm:"index"`
	Image           string
	Instructions    string `gorm:"type:text"`
	IngredientsJSON string `gorm:"type:text"`
	// Transient field (ignored by GORM)
	Ingredients []IngredientLine `gorm:"-"`
}

// TableName sets the table name for RecipeRecord
func (RecipeRecord) TableName() string {
	return "recipes"
}

// GetIngredients returns the deserialized ingredients
func (r *RecipeRecord) GetIngredients() ([]IngredientLine, error) {
	if len(r.Ingredients) > 0 {
		return r.Ingredients, nil
	}
	var ingredients []IngredientLine
	if r.IngredientsJSON == "" {
		return ingredients, nil
	}
	if err := json.Unmarshal([]byte(r.IngredientsJSON), &ingredients); err != nil {
		return nil, err
	}
	r.Ingredients = ingredients
	return ingredients, nil
}

// SetIngredients serializes the ingredients for storage
func (r *RecipeRecord) SetIngredients(ingredients []IngredientLine) error {
	data, err := json.Marshal(ingredients)
	if err != nil {
		return err
	}
	r.IngredientsJSON = string(data)
	r.Ingredients = ingredients
	return nil
}

// ToRecipe converts the record back into the domain type.
func (r *RecipeRecord) ToRecipe() (Recipe, error) {
	ingredients, err := r.GetIngredients()
	if err != nil {
		return Recipe{}, err
	}
	return Recipe{
		ID:           r.DrinkID,
		Name:         r.Name,
		Image:        r.Image,
		Instructions: r.Instructions,
		Ingredients:  ingredients,
	}, nil
}

// NewRecipeRecord builds a storable record from a Recipe.
func NewRecipeRecord(r Recipe) (*RecipeRecord, error) {
	rec := &RecipeRecord{
		DrinkID:      r.ID,
		Name:         r.Name,
		Image:        r.Image,
		Instructions: r.Instructions,
	}
	if err := rec.SetIngredients(r.Ingredients); err != nil {
		return nil, err
	}
	return rec, nil
}
