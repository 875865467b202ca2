package recipe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a recipe id does not exist.
var ErrNotFound = fmt.Errorf("recipe not found: %w", sql.ErrNoRows)

// Repository is the authoritative recipe store.
type Repository interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]Recipe, error)
	GetByID(ctx context.Context, id int64) (*Recipe, error)
	Nutrition(ctx context.Context, recipeID int64) (*NutritionFacts, error)
	SetNutrition(ctx context.Context, facts *NutritionFacts) error
	Create(ctx context.Context, recipe *Recipe) error
	Update(ctx context.Context, recipe *Recipe) error
	AttachIngredient(ctx context.Context, recipeID int64, ingredient *Ingredient) error
	Delete(ctx context.Context, id int64) error
}

// ByMode restricts results to one mode. "all" (or empty) matches every
// recipe; the cookbook mode also matches recipes without a mode.
func ByMode(mode string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		switch mode {
		case "", "all":
			return q
		case string(ModeCookbook):
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where("r.mode = ?", mode).WhereOr("r.mode IS NULL")
			})
		default:
			return q.Where("r.mode = ?", mode)
		}
	}
}

// ByKeywords matches recipes whose name, type, author name or any
// ingredient name contains at least one of tokens. Tokens are expected to be
// lowercase already.
func ByKeywords(tokens []string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if len(tokens) == 0 {
			return q
		}
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, token := range tokens {
				pattern := "%" + likeEscaper.Replace(token) + "%"
				q = q.
					WhereOr(`LOWER(r.name) LIKE ? ESCAPE '\'`, pattern).
					WhereOr(`LOWER(r.type) LIKE ? ESCAPE '\'`, pattern).
					WhereOr(`EXISTS (SELECT 1 FROM authors AS au WHERE au.id = r.author_id AND LOWER(au.name) LIKE ? ESCAPE '\')`, pattern).
					WhereOr(`EXISTS (SELECT 1 FROM ingredients AS ing WHERE ing.recipe_id = r.id AND LOWER(ing.name) LIKE ? ESCAPE '\')`, pattern)
			}
			return q
		})
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// BunRepository implements Repository with bun.
type BunRepository struct {
	db bun.IDB
}

var _ Repository = (*BunRepository)(nil)

// NewBunRepository returns a repository over db.
func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

func withChildren(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Relation("Author").
		Relation("Ingredients", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		})
}

// List returns recipes matching every criteria, children loaded, ordered by id.
func (b *BunRepository) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]Recipe, error) {
	recipes := []Recipe{}
	q := withChildren(b.db.NewSelect().Model(&recipes))
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Order("r.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

// Search is List with the mode and keyword criteria.
func (b *BunRepository) Search(ctx context.Context, mode string, tokens []string) ([]Recipe, error) {
	return b.List(ctx, ByMode(mode), ByKeywords(tokens))
}

// GetByID returns the recipe with its children or ErrNotFound.
func (b *BunRepository) GetByID(ctx context.Context, id int64) (*Recipe, error) {
	rec := new(Recipe)
	err := withChildren(b.db.NewSelect().Model(rec)).
		Where("r.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get recipe %d: %w", id, err)
	}
	return rec, nil
}

// Nutrition returns the current facts for a recipe, or nil when none are
// recorded.
func (b *BunRepository) Nutrition(ctx context.Context, recipeID int64) (*NutritionFacts, error) {
	facts := new(NutritionFacts)
	err := b.db.NewSelect().Model(facts).Where("n.recipe_id = ?", recipeID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get nutrition for recipe %d: %w", recipeID, err)
	}
	return facts, nil
}

// SetNutrition inserts or replaces the facts for a recipe.
func (b *BunRepository) SetNutrition(ctx context.Context, facts *NutritionFacts) error {
	_, err := b.db.NewInsert().
		Model(facts).
		On("CONFLICT (recipe_id) DO UPDATE").
		Set("calories = EXCLUDED.calories").
		Set("protein = EXCLUDED.protein").
		Set("fat = EXCLUDED.fat").
		Set("carbs = EXCLUDED.carbs").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set nutrition for recipe %d: %w", facts.RecipeID, err)
	}
	return nil
}

// Create inserts the recipe, its author when new, and its ingredients in one
// transaction. Generated ids are written back into recipe.
func (b *BunRepository) Create(ctx context.Context, recipe *Recipe) error {
	err := b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if recipe.Author != nil {
			if recipe.Author.ID == 0 {
				if _, err := tx.NewInsert().Model(recipe.Author).Exec(ctx); err != nil {
					return fmt.Errorf("insert author: %w", err)
				}
			}
			recipe.AuthorID = &recipe.Author.ID
		}

		if _, err := tx.NewInsert().Model(recipe).Exec(ctx); err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}

		for i := range recipe.Ingredients {
			recipe.Ingredients[i].RecipeID = recipe.ID
		}
		if len(recipe.Ingredients) > 0 {
			if _, err := tx.NewInsert().Model(&recipe.Ingredients).Exec(ctx); err != nil {
				return fmt.Errorf("insert ingredients: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create recipe %q: %w", recipe.Name, err)
	}
	return nil
}

// Update writes the scalar columns of recipe. Children are left untouched.
func (b *BunRepository) Update(ctx context.Context, recipe *Recipe) error {
	res, err := b.db.NewUpdate().
		Model(recipe).
		Column("name", "type", "description", "mode", "published", "author_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update recipe %d: %w", recipe.ID, err)
	}
	return requireAffected(res, recipe.ID)
}

// AttachIngredient adds an ingredient to an existing recipe.
func (b *BunRepository) AttachIngredient(ctx context.Context, recipeID int64, ingredient *Ingredient) error {
	exists, err := b.db.NewSelect().Model((*Recipe)(nil)).Where("r.id = ?", recipeID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("attach ingredient to recipe %d: %w", recipeID, err)
	}
	if !exists {
		return fmt.Errorf("%w: id %d", ErrNotFound, recipeID)
	}

	ingredient.RecipeID = recipeID
	if _, err := b.db.NewInsert().Model(ingredient).Exec(ctx); err != nil {
		return fmt.Errorf("attach ingredient to recipe %d: %w", recipeID, err)
	}
	return nil
}

// Delete removes the recipe with its ingredients and nutrition facts.
func (b *BunRepository) Delete(ctx context.Context, id int64) error {
	return b.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Ingredient)(nil)).Where("recipe_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete ingredients of recipe %d: %w", id, err)
		}
		if _, err := tx.NewDelete().Model((*NutritionFacts)(nil)).Where("recipe_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete nutrition of recipe %d: %w", id, err)
		}
		res, err := tx.NewDelete().Model((*Recipe)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete recipe %d: %w", id, err)
		}
		return requireAffected(res, id)
	})
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}
