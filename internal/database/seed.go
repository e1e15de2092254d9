package database

import (
	"barrobot/internal/measure"
	"barrobot/internal/models"
	"barrobot/internal/scaling"
)

type seedLine struct{ item, measure string }

type seedDrink struct {
	id, name, instructions string
	lines                  []seedLine
}

// A handful of classics so a rig without network access still has a menu.
var seedDrinks = []seedDrink{
	{"11728", "Martini", "Straight: Pour all ingredients into mixing glass with ice cubes. Stir well. Strain in chilled martini cocktail glass.",
		[]seedLine{{"Gin", "2 oz"}, {"Dry Vermouth", "1/2 oz"}, {"Olive", "1 piece"}}},
	{"11003", "Negroni", "Stir into glass over ice, garnish and serve.",
		[]seedLine{{"Gin", "1 oz"}, {"Campari", "1 oz"}, {"Sweet Vermouth", "1 oz"}}},
	{"11403", "Gin And Tonic", "Pour the gin and the tonic water into a highball glass almost filled with ice cubes. Stir well. Garnish with the lime wedge.",
		[]seedLine{{"Gin", "2 oz"}, {"Tonic Water", "5 oz"}, {"Lime", "1 wedge"}}},
	{"11007", "Margarita", "Rub the rim of the glass with the lime slice to make the salt stick to it. Shake the other ingredients with ice, then carefully pour into the glass.",
		[]seedLine{{"Tequila", "1 1/2 oz"}, {"Triple Sec", "1/2 oz"}, {"Lime Juice", "1 oz"}, {"Salt", ""}}},
	{"11288", "Cuba Libre", "Build all ingredients in a highball glass filled with ice. Garnish with lime wedge.",
		[]seedLine{{"Light Rum", "2 oz"}, {"Lime", "Juice of 1/2"}, {"Coca-Cola", "4 oz"}}},
	{"11006", "Daiquiri", "Pour all ingredients into shaker with ice cubes. Shake well. Strain in chilled cocktail glass.",
		[]seedLine{{"Light Rum", "1 1/2 oz"}, {"Lime", "Juice of 1/2"}, {"Sugar Syrup", "1/2 oz"}}},
	{"12089", "Screwdriver", "Mix in a highball glass with ice. Garnish and serve.",
		[]seedLine{{"Vodka", "2 oz"}, {"Orange Juice", "6 oz"}}},
	{"17196", "Cosmopolitan", "Add all ingredients into cocktail shaker filled with ice. Shake well and double strain into large cocktail glass. Garnish with lime wheel.",
		[]seedLine{{"Vodka", "1 1/4 oz"}, {"Lime Juice", "1/4 oz"}, {"Cointreau", "1/2 oz"}, {"Cranberry Juice", "1 oz"}}},
}

// SeedRecipes returns the built-in catalogue, parsed and normalized the same
// way an import is.
func SeedRecipes() []models.Recipe {
	out := make([]models.Recipe, 0, len(seedDrinks))
	for _, d := range seedDrinks {
		lines := make([]models.IngredientLine, 0, len(d.lines))
		for _, l := range d.lines {
			lines = append(lines, models.IngredientLine{
				Item:  models.NormalizeName(l.item),
				QtyOz: measure.Ounces(l.measure),
				Raw:   l.measure,
			})
		}
		out = append(out, models.Recipe{
			ID:           d.id,
			Name:         d.name,
			Instructions: d.instructions,
			Ingredients:  scaling.NormalizeToReference(lines, models.DefaultShotOz),
		})
	}
	return out
}
