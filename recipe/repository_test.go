package recipe

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := OpenDB(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seededRepo(t *testing.T) (*BunRepository, []Recipe) {
	t.Helper()
	repo := NewBunRepository(newTestDB(t))
	recipes, err := Seed(context.Background(), repo)
	require.NoError(t, err)
	return repo, recipes
}

func names(recipes []Recipe) []string {
	out := make([]string, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, r.Name)
	}
	return out
}

func TestOpenDB_UnsupportedDriver(t *testing.T) {
	_, err := OpenDB("oracle", "")
	assert.ErrorContains(t, err, `unsupported database driver "oracle"`)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, Migrate(context.Background(), db))
}

func TestBunRepository_ListLoadsChildrenInIDOrder(t *testing.T) {
	repo, seeded := seededRepo(t)

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, len(seeded))

	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID, got[i].ID)
	}

	assert.Equal(t, "Pancakes", got[0].Name)
	require.NotNil(t, got[0].Author)
	assert.Equal(t, "Julia Child", got[0].Author.Name)
	assert.Len(t, got[0].Ingredients, 3)
	assert.Equal(t, "Flour", got[0].Ingredients[0].Name)

	assert.Nil(t, got[3].Author, "Tomato Soup has no author")
}

func TestBunRepository_ListEmpty(t *testing.T) {
	repo := NewBunRepository(newTestDB(t))
	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBunRepository_SearchByMode(t *testing.T) {
	repo, _ := seededRepo(t)
	ctx := context.Background()

	tests := []struct {
		mode string
		want []string
	}{
		{"all", []string{"Pancakes", "Chicken Curry", "Spaghetti Carbonara", "Tomato Soup", "Secret Brownies"}},
		{"", []string{"Pancakes", "Chicken Curry", "Spaghetti Carbonara", "Tomato Soup", "Secret Brownies"}},
		// carbonara has no mode and counts as cookbook
		{"cookbook", []string{"Pancakes", "Spaghetti Carbonara", "Tomato Soup"}},
		{"user", []string{"Chicken Curry", "Secret Brownies"}},
		{"unknown", []string{}},
	}

	for _, tt := range tests {
		t.Run("mode="+tt.mode, func(t *testing.T) {
			got, err := repo.Search(ctx, tt.mode, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestBunRepository_SearchByKeywords(t *testing.T) {
	repo, _ := seededRepo(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mode   string
		tokens []string
		want   []string
	}{
		{"recipe name", "all", []string{"soup"}, []string{"Tomato Soup"}},
		{"type", "all", []string{"dinner"}, []string{"Chicken Curry", "Spaghetti Carbonara"}},
		{"ingredient name", "all", []string{"coconut"}, []string{"Chicken Curry"}},
		{"author name", "all", []string{"hazan"}, []string{"Spaghetti Carbonara"}},
		{"or across keywords", "all", []string{"basil", "flour"}, []string{"Pancakes", "Tomato Soup"}},
		{"and with mode", "cookbook", []string{"dinner"}, []string{"Spaghetti Carbonara"}},
		{"no match", "all", []string{"sushi"}, []string{}},
		{"like wildcards are literal", "all", []string{"%"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Search(ctx, tt.mode, tt.tokens)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestBunRepository_GetByID(t *testing.T) {
	repo, seeded := seededRepo(t)
	ctx := context.Background()

	got, err := repo.GetByID(ctx, seeded[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "Chicken Curry", got.Name)
	assert.Len(t, got.Ingredients, 2)

	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestBunRepository_Nutrition(t *testing.T) {
	repo, seeded := seededRepo(t)
	ctx := context.Background()

	facts, err := repo.Nutrition(ctx, seeded[0].ID)
	require.NoError(t, err)
	require.NotNil(t, facts)
	assert.Equal(t, 300, facts.Calories)

	facts.Calories = 999
	require.NoError(t, repo.SetNutrition(ctx, facts))

	facts, err = repo.Nutrition(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 999, facts.Calories)

	none, err := repo.Nutrition(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestBunRepository_UpdateAndAttach(t *testing.T) {
	repo, seeded := seededRepo(t)
	ctx := context.Background()

	soup := seeded[3]
	soup.Type = "Dinner"
	require.NoError(t, repo.Update(ctx, &soup))

	require.NoError(t, repo.AttachIngredient(ctx, soup.ID, &Ingredient{Name: "Garlic"}))

	got, err := repo.GetByID(ctx, soup.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dinner", got.Type)
	require.Len(t, got.Ingredients, 3)
	assert.Equal(t, "Garlic", got.Ingredients[2].Name)

	missing := Recipe{ID: 9999, Name: "ghost"}
	assert.ErrorIs(t, repo.Update(ctx, &missing), ErrNotFound)
	assert.ErrorIs(t, repo.AttachIngredient(ctx, 9999, &Ingredient{Name: "x"}), ErrNotFound)
}

func TestBunRepository_Delete(t *testing.T) {
	repo, seeded := seededRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, seeded[0].ID))

	_, err := repo.GetByID(ctx, seeded[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	facts, err := repo.Nutrition(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Nil(t, facts)

	assert.ErrorIs(t, repo.Delete(ctx, seeded[0].ID), ErrNotFound)
}

func TestRecipe_IsPublished(t *testing.T) {
	yes, no := true, false
	assert.True(t, Recipe{}.IsPublished())
	assert.True(t, Recipe{Published: &yes}.IsPublished())
	assert.False(t, Recipe{Published: &no}.IsPublished())
}

func TestRecipe_EffectiveMode(t *testing.T) {
	assert.Equal(t, ModeCookbook, Recipe{}.EffectiveMode())
	assert.Equal(t, ModeUser, Recipe{Mode: ModeUser.Ptr()}.EffectiveMode())
}
