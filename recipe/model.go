package recipe

import (
	"time"

	"github.com/uptrace/bun"
)

// Mode is the audience a recipe was written for.
type Mode string

const (
	ModeUser     Mode = "user"
	ModeCookbook Mode = "cookbook"
)

// KnownModes lists every mode a recipe can carry. A recipe without a mode
// is treated as a cookbook recipe.
var KnownModes = []Mode{ModeUser, ModeCookbook}

// Ptr returns a pointer to m, handy for optional fields.
func (m Mode) Ptr() *Mode {
	return &m
}

// Author wrote one or more recipes.
type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a" json:"-" msgpack:"-"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id" msgpack:"id"`
	Name string `bun:"name,notnull" json:"name" msgpack:"name"`
}

// Ingredient is owned by exactly one recipe.
type Ingredient struct {
	bun.BaseModel `bun:"table:ingredients,alias:i" json:"-" msgpack:"-"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id" msgpack:"id"`
	RecipeID int64  `bun:"recipe_id,notnull" json:"recipe_id" msgpack:"recipe_id"`
	Name     string `bun:"name,notnull" json:"name" msgpack:"name"`
	Quantity string `bun:"quantity" json:"quantity,omitempty" msgpack:"quantity,omitempty"`

	// back reference, never serialized
	Recipe *Recipe `bun:"rel:belongs-to,join:recipe_id=id" json:"-" msgpack:"-"`
}

// Recipe is the entity served by the query layer.
type Recipe struct {
	bun.BaseModel `bun:"table:recipes,alias:r" json:"-" msgpack:"-"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id" msgpack:"id"`
	Name        string    `bun:"name,notnull" json:"name" msgpack:"name"`
	Type        string    `bun:"type" json:"type" msgpack:"type"`
	Description string    `bun:"description" json:"description,omitempty" msgpack:"description,omitempty"`
	Mode        *Mode     `bun:"mode" json:"mode" msgpack:"mode"`
	Published   *bool     `bun:"published" json:"published" msgpack:"published"`
	AuthorID    *int64    `bun:"author_id" json:"author_id,omitempty" msgpack:"author_id,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at" msgpack:"created_at"`

	Author      *Author      `bun:"rel:belongs-to,join:author_id=id" json:"author,omitempty" msgpack:"author,omitempty"`
	Ingredients []Ingredient `bun:"rel:has-many,join:id=recipe_id" json:"ingredients" msgpack:"ingredients"`
}

// IsPublished reports whether the recipe may be served from a shared cache.
// Recipes that never set the flag are published.
func (r Recipe) IsPublished() bool {
	return r.Published == nil || *r.Published
}

// EffectiveMode returns the mode used for filtering.
func (r Recipe) EffectiveMode() Mode {
	if r.Mode == nil {
		return ModeCookbook
	}
	return *r.Mode
}

// NutritionFacts change often and are never cached.
type NutritionFacts struct {
	bun.BaseModel `bun:"table:nutrition_facts,alias:n" json:"-" msgpack:"-"`

	RecipeID  int64     `bun:"recipe_id,pk" json:"recipe_id"`
	Calories  int       `bun:"calories" json:"calories"`
	Protein   float64   `bun:"protein" json:"protein"`
	Fat       float64   `bun:"fat" json:"fat"`
	Carbs     float64   `bun:"carbs" json:"carbs"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Detail is a recipe together with its current nutrition facts.
type Detail struct {
	Recipe    *Recipe         `json:"recipe"`
	Nutrition *NutritionFacts `json:"nutrition,omitempty"`
}
