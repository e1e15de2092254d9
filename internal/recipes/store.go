// Package recipes keeps the local recipe cache and fills it from
// TheCocktailDB.
package recipes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jinzhu/gorm"

	"barrobot/internal/models"
)

// ErrNotFound is returned when no recipe matches.
var ErrNotFound = errors.New("recipe not found")

// Store is the gorm-backed recipe cache.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// List returns every cached recipe ordered by name.
func (s *Store) List() ([]models.Recipe, error) {
	var records []models.RecipeRecord
	if err := s.db.Order("name asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}

	out := make([]models.Recipe, 0, len(records))
	for i := range records {
		r, err := records[i].ToRecipe()
		if err != nil {
			return nil, fmt.Errorf("decode recipe %s: %w", records[i].DrinkID, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Get looks a recipe up by its CocktailDB id.
func (s *Store) Get(id string) (models.Recipe, error) {
	var rec models.RecipeRecord
	err := s.db.Where("drink_id = ?", id).First(&rec).Error
	return decode(rec, err)
}

// FindByName matches the name case-insensitively.
func (s *Store) FindByName(name string) (models.Recipe, error) {
	var rec models.RecipeRecord
	err := s.db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&rec).Error
	return decode(rec, err)
}

func decode(rec models.RecipeRecord, err error) (models.Recipe, error) {
	if gorm.IsRecordNotFoundError(err) {
		return models.Recipe{}, ErrNotFound
	}
	if err != nil {
		return models.Recipe{}, err
	}
	return rec.ToRecipe()
}

// ReplaceAll swaps the whole cache for recipes in one transaction. Recipes
// sharing an id keep the first occurrence.
func (s *Store) ReplaceAll(recipes []models.Recipe) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := tx.Unscoped().Delete(&models.RecipeRecord{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("clear recipes: %w", err)
	}

	seen := make(map[string]bool, len(recipes))
	for _, r := range recipes {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		rec, err := models.NewRecipeRecord(r)
		if err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Create(rec).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("store recipe %s: %w", r.ID, err)
		}
	}
	return tx.Commit().Error
}

// Count returns the number of cached recipes.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.Model(&models.RecipeRecord{}).Count(&n).Error
	return n, err
}
