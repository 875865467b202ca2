package repositorycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/pkg/testsupport"
	"github.com/goliatone/go-query-cache/recipe"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepository records calls and serves canned results.
type mockRepository struct {
	mu    sync.Mutex
	calls []string

	recipes   []recipe.Recipe
	listError error
	byID      map[int64]*recipe.Recipe
	nutrition map[int64]*recipe.NutritionFacts
	nextID    int64
	writeErr  error
}

func newMockRepository(recipes ...recipe.Recipe) *mockRepository {
	m := &mockRepository{
		recipes:   recipes,
		byID:      make(map[int64]*recipe.Recipe),
		nutrition: make(map[int64]*recipe.NutritionFacts),
		nextID:    100,
	}
	for i := range recipes {
		m.byID[recipes[i].ID] = &recipes[i]
	}
	return m
}

func (m *mockRepository) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
}

func (m *mockRepository) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (m *mockRepository) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]recipe.Recipe, error) {
	m.recordCall("List")
	if m.listError != nil {
		return nil, m.listError
	}
	return append([]recipe.Recipe(nil), m.recipes...), nil
}

func (m *mockRepository) GetByID(ctx context.Context, id int64) (*recipe.Recipe, error) {
	m.recordCall("GetByID")
	r, ok := m.byID[id]
	if !ok {
		return nil, recipe.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepository) Nutrition(ctx context.Context, recipeID int64) (*recipe.NutritionFacts, error) {
	m.recordCall("Nutrition")
	return m.nutrition[recipeID], nil
}

func (m *mockRepository) SetNutrition(ctx context.Context, facts *recipe.NutritionFacts) error {
	m.recordCall("SetNutrition")
	m.nutrition[facts.RecipeID] = facts
	return nil
}

func (m *mockRepository) Create(ctx context.Context, r *recipe.Recipe) error {
	m.recordCall("Create")
	if m.writeErr != nil {
		return m.writeErr
	}
	m.nextID++
	r.ID = m.nextID
	return nil
}

func (m *mockRepository) Update(ctx context.Context, r *recipe.Recipe) error {
	m.recordCall("Update")
	return m.writeErr
}

func (m *mockRepository) AttachIngredient(ctx context.Context, recipeID int64, ingredient *recipe.Ingredient) error {
	m.recordCall("AttachIngredient")
	return m.writeErr
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	m.recordCall("Delete")
	return m.writeErr
}

var _ recipe.Repository = (*mockRepository)(nil)

func testConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.KnownModes = []string{"user", "cookbook"}
	cfg.KnownFilters = []string{"Dinner"}
	return cfg
}

func newTestDecorator(t *testing.T, base recipe.Repository, cfg cache.Config) (*CachedRecipes, *testsupport.RecordingStore) {
	t.Helper()
	store := testsupport.NewRecordingStore()
	svc := cache.NewServiceFromConfig(store, cfg)
	return New(base, svc, cfg), store
}

func sampleRecipes() []recipe.Recipe {
	no := false
	return []recipe.Recipe{
		{ID: 1, Name: "Chicken Curry", Type: "Dinner", Mode: recipe.ModeUser.Ptr()},
		{ID: 2, Name: "Tomato Soup", Type: "Lunch"},
		{ID: 3, Name: "Secret Brownies", Type: "Dessert", Published: &no},
	}
}

func TestNew_DefaultNamespace(t *testing.T) {
	cached, _ := newTestDecorator(t, newMockRepository(), testConfig())
	assert.Equal(t, "recipe", cached.Keys().Namespace())

	cfg := testConfig()
	cfg.Namespace = "kitchen"
	cached, _ = newTestDecorator(t, newMockRepository(), cfg)
	assert.Equal(t, "kitchen:all", cached.Keys().AllKey())
}

func TestCachedRecipes_GetAllCachesAndFiltersUnpublished(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	cached, store := newTestDecorator(t, base, testConfig())

	first, err := cached.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 3, "the caller sees what the repository returned")

	second, err := cached.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, base.count("List"))
	require.Len(t, second, 2, "unpublished recipes are not cached")
	assert.Equal(t, "Chicken Curry", second[0].Name)
	assert.Equal(t, "Tomato Soup", second[1].Name)

	assert.Equal(t, 24*time.Hour, store.TTL("recipe:all"))
}

func TestCachedRecipes_EquivalentSearchesShareOneKey(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	cached, store := newTestDecorator(t, base, testConfig())

	user := "user"
	shouting := " USER "

	_, err := cached.SearchByMode(ctx, &user, "dinner,Chicken")
	require.NoError(t, err)
	_, err = cached.SearchByMode(ctx, &shouting, " chicken ", "DINNER", "chicken")
	require.NoError(t, err)

	assert.Equal(t, 1, base.count("List"))
	assert.True(t, store.Has("recipe:search:user:chicken,dinner"))
}

func TestCachedRecipes_SearchUsesImplicitMode(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	cached, store := newTestDecorator(t, base, testConfig())

	_, err := cached.Search(ctx, "Soup")
	require.NoError(t, err)
	assert.True(t, store.Has("recipe:search:all:soup"))

	blank := "  "
	_, err = cached.SearchByMode(ctx, &blank, "soup")
	require.NoError(t, err)
	assert.Equal(t, 1, base.count("List"))
}

func TestCachedRecipes_FetchErrorPropagates(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository()
	base.listError = errors.New("database gone")
	cached, store := newTestDecorator(t, base, testConfig())

	_, err := cached.GetAll(ctx)
	assert.EqualError(t, err, "database gone")
	assert.Empty(t, store.Keys())
}

func TestCachedRecipes_GetDetail(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	base.nutrition[1] = &recipe.NutritionFacts{RecipeID: 1, Calories: 640}
	cached, store := newTestDecorator(t, base, testConfig())

	detail, err := cached.GetDetail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Chicken Curry", detail.Recipe.Name)
	assert.Equal(t, 640, detail.Nutrition.Calories)
	assert.Equal(t, 10*time.Hour, store.TTL("recipe:detail:1"))

	base.nutrition[1] = &recipe.NutritionFacts{RecipeID: 1, Calories: 700}

	detail, err = cached.GetDetail(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 700, detail.Nutrition.Calories, "nutrition bypasses the cache")
	assert.Equal(t, 1, base.count("GetByID"))
	assert.Equal(t, 2, base.count("Nutrition"))
}

func TestCachedRecipes_GetDetailUnpublishedNotCached(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	cached, store := newTestDecorator(t, base, testConfig())

	for i := 0; i < 2; i++ {
		detail, err := cached.GetDetail(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, "Secret Brownies", detail.Recipe.Name)
		assert.Nil(t, detail.Nutrition)
	}
	assert.False(t, store.Has("recipe:detail:3"))
	assert.Equal(t, 2, base.count("GetByID"))
}

func TestCachedRecipes_GetDetailNotFound(t *testing.T) {
	base := newMockRepository()
	cached, _ := newTestDecorator(t, base, testConfig())

	_, err := cached.GetDetail(context.Background(), 404)
	assert.ErrorIs(t, err, recipe.ErrNotFound)
	assert.Equal(t, 0, base.count("Nutrition"))
}

func TestCachedRecipes_MutationsSweep(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(context.Context, *CachedRecipes) error
		detail string
	}{
		{
			name: "create",
			mutate: func(ctx context.Context, c *CachedRecipes) error {
				return c.Create(ctx, &recipe.Recipe{Name: "Ramen"})
			},
			detail: "recipe:detail:101",
		},
		{
			name: "update",
			mutate: func(ctx context.Context, c *CachedRecipes) error {
				return c.Update(ctx, &recipe.Recipe{ID: 2, Name: "Tomato Soup"})
			},
			detail: "recipe:detail:2",
		},
		{
			name: "attach ingredient",
			mutate: func(ctx context.Context, c *CachedRecipes) error {
				return c.AttachIngredient(ctx, 2, &recipe.Ingredient{Name: "Basil"})
			},
			detail: "recipe:detail:2",
		},
		{
			name: "delete",
			mutate: func(ctx context.Context, c *CachedRecipes) error {
				return c.Delete(ctx, 2)
			},
			detail: "recipe:detail:2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cached, store := newTestDecorator(t, newMockRepository(sampleRecipes()...), testConfig())

			store.Put("recipe:all", "x")
			store.Put("recipe:search:all:dinner", "x")
			store.Put(tt.detail, "x")

			require.NoError(t, tt.mutate(ctx, cached))

			assert.False(t, store.Has("recipe:all"))
			assert.False(t, store.Has("recipe:search:all:dinner"))
			assert.False(t, store.Has(tt.detail))
		})
	}
}

func TestCachedRecipes_FailedMutationDoesNotSweep(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	base.writeErr = recipe.ErrNotFound
	cached, store := newTestDecorator(t, base, testConfig())
	store.Put("recipe:all", "x")

	err := cached.Update(ctx, &recipe.Recipe{ID: 9})
	assert.ErrorIs(t, err, recipe.ErrNotFound)
	assert.True(t, store.Has("recipe:all"))
	assert.Zero(t, store.CountCalls("Remove:"))
}

func TestCachedRecipes_Import(t *testing.T) {
	var records []map[string]string
	testsupport.LoadFixtureJSON(t, testsupport.FixturePath("import_records.json"), &records)

	ctx := context.Background()
	base := newMockRepository()
	cached, store := newTestDecorator(t, base, testConfig())
	store.Put("recipe:all", "x")

	result, err := cached.Import(ctx, records)
	require.Error(t, err)
	assert.ErrorContains(t, err, "record 2: field name: required")
	assert.ErrorContains(t, err, `record 3: field mode: invalid mode "restaurant"`)

	assert.Equal(t, []int64{101, 102}, result.Created)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, base.count("Create"))

	assert.False(t, store.Has("recipe:all"))
	assert.Contains(t, store.Calls(), "Remove:recipe:detail:101")
	assert.Contains(t, store.Calls(), "Remove:recipe:detail:102")
	assert.Equal(t, 0, result.Sweep.Failed)
}

func TestCachedRecipes_CacheOutageIsTransparent(t *testing.T) {
	ctx := context.Background()
	base := newMockRepository(sampleRecipes()...)
	svc := cache.NewServiceFromConfig(&testsupport.FailingStore{}, testConfig())
	cached := New(base, svc, testConfig())

	for i := 0; i < 2; i++ {
		got, err := cached.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	}
	assert.Equal(t, 2, base.count("List"))

	require.NoError(t, cached.Delete(ctx, 1))
}
