package recipe

import (
	"context"
	"fmt"
)

func boolPtr(b bool) *bool { return &b }

// SampleRecipes returns a small catalogue for local development and tests.
// One recipe has no mode and one is unpublished.
func SampleRecipes() []Recipe {
	return []Recipe{
		{
			Name:   "Pancakes",
			Type:   "Breakfast",
			Mode:   ModeCookbook.Ptr(),
			Author: &Author{Name: "Julia Child"},
			Ingredients: []Ingredient{
				{Name: "Flour", Quantity: "200g"},
				{Name: "Milk", Quantity: "300ml"},
				{Name: "Egg", Quantity: "2"},
			},
		},
		{
			Name:   "Chicken Curry",
			Type:   "Dinner",
			Mode:   ModeUser.Ptr(),
			Author: &Author{Name: "Madhur Jaffrey"},
			Ingredients: []Ingredient{
				{Name: "Chicken", Quantity: "500g"},
				{Name: "Coconut Milk", Quantity: "400ml"},
			},
		},
		{
			Name:   "Spaghetti Carbonara",
			Type:   "Dinner",
			Author: &Author{Name: "Marcella Hazan"},
			Ingredients: []Ingredient{
				{Name: "Spaghetti", Quantity: "400g"},
				{Name: "Guanciale", Quantity: "150g"},
				{Name: "Pecorino", Quantity: "50g"},
			},
		},
		{
			Name:        "Tomato Soup",
			Type:        "Lunch",
			Description: "Weeknight soup",
			Mode:        ModeCookbook.Ptr(),
			Ingredients: []Ingredient{
				{Name: "Tomato", Quantity: "1kg"},
				{Name: "Basil"},
			},
		},
		{
			Name:      "Secret Brownies",
			Type:      "Dessert",
			Mode:      ModeUser.Ptr(),
			Published: boolPtr(false),
			Ingredients: []Ingredient{
				{Name: "Chocolate", Quantity: "200g"},
			},
		},
	}
}

// Seed inserts SampleRecipes through repo and returns the created recipes.
func Seed(ctx context.Context, repo Repository) ([]Recipe, error) {
	recipes := SampleRecipes()
	for i := range recipes {
		if err := repo.Create(ctx, &recipes[i]); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
		facts := &NutritionFacts{
			RecipeID: recipes[i].ID,
			Calories: 300 + 100*i,
			Protein:  float64(10 + i),
			Fat:      float64(5 + i),
			Carbs:    float64(30 + i),
		}
		if err := repo.SetNutrition(ctx, facts); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return recipes, nil
}
