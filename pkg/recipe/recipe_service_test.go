package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/pkg/ingredient"
	"foodgram-backend/pkg/tag"
	"foodgram-backend/pkg/user"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testImage = "aGVsbG8="

type fakeStorage struct{}

func (fakeStorage) UploadBase64(fileName string, payload string, dir string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("empty payload")
	}
	return fmt.Sprintf("%s/%s.png", dir, fileName), nil
}

func (fakeStorage) DeleteFile(objectKey string) error { return nil }

func (fakeStorage) GetPublicLinkKey(objectKey string) string {
	return "https://img.test/" + objectKey
}

func (fakeStorage) GetObjectKeyFromLink(link string) string {
	return strings.TrimPrefix(link, "https://img.test/")
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&entities.User{},
		&entities.Follow{},
		&entities.Tag{},
		&entities.Ingredient{},
		&entities.Recipe{},
		&entities.IngredientInRecipe{},
		&entities.Favorite{},
		&entities.Shopping{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestRecipeService(t *testing.T) (*gorm.DB, RecipeService) {
	t.Helper()

	db := setupTestDB(t)
	svc := NewRecipeService(
		NewRecipeRepository(db),
		tag.NewTagRepository(db),
		ingredient.NewIngredientRepository(db),
		user.NewUserRepository(db),
		fakeStorage{},
	)
	return db, svc
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *entities.User {
	t.Helper()

	u := &entities.User{
		ID:        uuid.New(),
		Email:     email,
		Username:  strings.SplitN(email, "@", 2)[0],
		FirstName: "Test",
		LastName:  "User",
		Password:  "hashed",
		Role:      domain.RoleUser,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestTag(t *testing.T, db *gorm.DB, name, slug string) *entities.Tag {
	t.Helper()

	tg := &entities.Tag{
		ID:    uuid.New(),
		Name:  name,
		Color: "#E26C2D",
		Slug:  slug,
	}
	if err := db.Create(tg).Error; err != nil {
		t.Fatalf("create tag: %v", err)
	}
	return tg
}

func createTestIngredient(t *testing.T, db *gorm.DB, name, unit string) *entities.Ingredient {
	t.Helper()

	ing := &entities.Ingredient{
		ID:              uuid.New(),
		Name:            name,
		MeasurementUnit: unit,
	}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	return ing
}

func recipeRequest(tags []*entities.Tag, amounts map[*entities.Ingredient]int) domain.CreateRecipeRequest {
	req := domain.CreateRecipeRequest{
		Name:        "pancakes",
		Text:        "mix and fry",
		Image:       testImage,
		CookingTime: 15,
	}
	for _, tg := range tags {
		req.Tags = append(req.Tags, tg.ID.String())
	}
	for ing, amount := range amounts {
		req.Ingredients = append(req.Ingredients, domain.IngredientAmountRequest{
			ID:     ing.ID.String(),
			Amount: amount,
		})
	}
	return req
}

func TestCreateRecipe(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")
	milk := createTestIngredient(t, db, "milk", "ml")

	req := recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200, milk: 300})

	res, err := svc.CreateRecipe(ctx, req, author.ID.String())
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	if res.Name != "pancakes" || res.CookingTime != 15 {
		t.Errorf("unexpected recipe: %+v", res)
	}
	if res.Author.ID != author.ID.String() {
		t.Errorf("author = %s, want %s", res.Author.ID, author.ID)
	}
	if len(res.Tags) != 1 || res.Tags[0].Slug != "breakfast" {
		t.Errorf("tags = %+v", res.Tags)
	}
	if len(res.Ingredients) != 2 {
		t.Fatalf("ingredients = %+v", res.Ingredients)
	}
	if res.IsFavorited || res.IsInShoppingCart {
		t.Errorf("fresh recipe must not be favorited or in cart")
	}
	if !strings.HasPrefix(res.Image, "https://img.test/recipes/") {
		t.Errorf("image = %q", res.Image)
	}

	var amounts int64
	db.Model(&entities.IngredientInRecipe{}).Count(&amounts)
	if amounts != 2 {
		t.Errorf("stored amounts = %d, want 2", amounts)
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")

	valid := recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200})

	cases := []struct {
		name    string
		mutate  func(req *domain.CreateRecipeRequest)
		wantErr error
	}{
		{
			name:    "no ingredients",
			mutate:  func(req *domain.CreateRecipeRequest) { req.Ingredients = nil },
			wantErr: domain.ErrNoIngredients,
		},
		{
			name: "repeated ingredient",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Ingredients = append(req.Ingredients, req.Ingredients[0])
			},
			wantErr: domain.ErrDuplicateIngredient,
		},
		{
			name:    "zero amount",
			mutate:  func(req *domain.CreateRecipeRequest) { req.Ingredients[0].Amount = 0 },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "no tags",
			mutate:  func(req *domain.CreateRecipeRequest) { req.Tags = nil },
			wantErr: domain.ErrNoTags,
		},
		{
			name: "repeated tag",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Tags = append(req.Tags, req.Tags[0])
			},
			wantErr: domain.ErrDuplicateTag,
		},
		{
			name:    "zero cooking time",
			mutate:  func(req *domain.CreateRecipeRequest) { req.CookingTime = 0 },
			wantErr: domain.ErrInvalidCookingTime,
		},
		{
			name:    "unknown tag",
			mutate:  func(req *domain.CreateRecipeRequest) { req.Tags = []string{uuid.NewString()} },
			wantErr: domain.ErrTagNotFound,
		},
		{
			name: "unknown ingredient",
			mutate: func(req *domain.CreateRecipeRequest) {
				req.Ingredients[0].ID = uuid.NewString()
			},
			wantErr: domain.ErrIngredientNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200})
			req.Name = valid.Name
			tc.mutate(&req)

			if _, err := svc.CreateRecipe(ctx, req, author.ID.String()); !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	var count int64
	db.Model(&entities.Recipe{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected payloads must persist nothing, got %d recipes", count)
	}
}

func TestUpdateRecipeReplacesSets(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	dinner := createTestTag(t, db, "Dinner", "dinner")
	flour := createTestIngredient(t, db, "flour", "g")
	milk := createTestIngredient(t, db, "milk", "ml")
	sugar := createTestIngredient(t, db, "sugar", "g")

	created, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast, dinner}, map[*entities.Ingredient]int{flour: 200, milk: 300}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	update := domain.UpdateRecipeRequest{
		Name:        "waffles",
		Text:        "mix and bake",
		CookingTime: 25,
		Tags:        []string{dinner.ID.String()},
		Ingredients: []domain.IngredientAmountRequest{
			{ID: sugar.ID.String(), Amount: 50},
		},
	}

	updated, err := svc.UpdateRecipe(ctx, created.ID, update, author.ID.String())
	if err != nil {
		t.Fatalf("UpdateRecipe: %v", err)
	}

	if updated.Name != "waffles" || updated.CookingTime != 25 {
		t.Errorf("unexpected recipe: %+v", updated)
	}
	if len(updated.Tags) != 1 || updated.Tags[0].Slug != "dinner" {
		t.Errorf("tags not replaced: %+v", updated.Tags)
	}
	if len(updated.Ingredients) != 1 || updated.Ingredients[0].Name != "sugar" || updated.Ingredients[0].Amount != 50 {
		t.Errorf("ingredients not replaced: %+v", updated.Ingredients)
	}
	if updated.Image != created.Image {
		t.Errorf("image must survive an update without a new payload")
	}

	var amounts int64
	db.Model(&entities.IngredientInRecipe{}).Count(&amounts)
	if amounts != 1 {
		t.Errorf("stored amounts = %d, want 1", amounts)
	}
}

func TestUpdateRecipeNotOwner(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	other := createTestUser(t, db, "other@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")

	created, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	update := domain.UpdateRecipeRequest{
		Name:        "hijacked",
		Text:        "nope",
		CookingTime: 1,
		Tags:        []string{breakfast.ID.String()},
		Ingredients: []domain.IngredientAmountRequest{{ID: flour.ID.String(), Amount: 1}},
	}
	if _, err := svc.UpdateRecipe(ctx, created.ID, update, other.ID.String()); !errors.Is(err, domain.ErrNotRecipeOwner) {
		t.Errorf("update err = %v, want %v", err, domain.ErrNotRecipeOwner)
	}
	if err := svc.DeleteRecipe(ctx, created.ID, other.ID.String()); !errors.Is(err, domain.ErrNotRecipeOwner) {
		t.Errorf("delete err = %v, want %v", err, domain.ErrNotRecipeOwner)
	}
}

func TestDeleteRecipe(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")

	created, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if _, err := svc.AddFavorite(ctx, created.ID, author.ID.String()); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}

	if err := svc.DeleteRecipe(ctx, created.ID, author.ID.String()); err != nil {
		t.Fatalf("DeleteRecipe: %v", err)
	}

	if _, err := svc.GetRecipeDetail(ctx, created.ID, ""); !errors.Is(err, domain.ErrRecipeNotFound) {
		t.Errorf("detail err = %v, want %v", err, domain.ErrRecipeNotFound)
	}
	var amounts, favorites int64
	db.Model(&entities.IngredientInRecipe{}).Count(&amounts)
	db.Model(&entities.Favorite{}).Count(&favorites)
	if amounts != 0 || favorites != 0 {
		t.Errorf("dependent rows left behind: %d amounts, %d favorites", amounts, favorites)
	}
}

func TestFavoriteToggle(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	reader := createTestUser(t, db, "reader@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")

	created, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	short, err := svc.AddFavorite(ctx, created.ID, reader.ID.String())
	if err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if short.ID != created.ID || short.Name != created.Name {
		t.Errorf("short recipe = %+v", short)
	}

	if _, err := svc.AddFavorite(ctx, created.ID, reader.ID.String()); !errors.Is(err, domain.ErrAlreadyFavorited) {
		t.Errorf("second add err = %v, want %v", err, domain.ErrAlreadyFavorited)
	}

	detail, err := svc.GetRecipeDetail(ctx, created.ID, reader.ID.String())
	if err != nil {
		t.Fatalf("GetRecipeDetail: %v", err)
	}
	if !detail.IsFavorited {
		t.Errorf("is_favorited = false after add")
	}

	if err := svc.RemoveFavorite(ctx, created.ID, reader.ID.String()); err != nil {
		t.Fatalf("RemoveFavorite: %v", err)
	}
	if err := svc.RemoveFavorite(ctx, created.ID, reader.ID.String()); !errors.Is(err, domain.ErrNotFavorited) {
		t.Errorf("second remove err = %v, want %v", err, domain.ErrNotFavorited)
	}

	if _, err := svc.AddFavorite(ctx, uuid.NewString(), reader.ID.String()); !errors.Is(err, domain.ErrRecipeNotFound) {
		t.Errorf("unknown recipe err = %v, want %v", err, domain.ErrRecipeNotFound)
	}
}

func TestShoppingCartToggle(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")

	created, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	if _, err := svc.AddToShoppingCart(ctx, created.ID, author.ID.String()); err != nil {
		t.Fatalf("AddToShoppingCart: %v", err)
	}
	if _, err := svc.AddToShoppingCart(ctx, created.ID, author.ID.String()); !errors.Is(err, domain.ErrAlreadyInShoppingCart) {
		t.Errorf("second add err = %v, want %v", err, domain.ErrAlreadyInShoppingCart)
	}
	if err := svc.RemoveFromShoppingCart(ctx, created.ID, author.ID.String()); err != nil {
		t.Fatalf("RemoveFromShoppingCart: %v", err)
	}
	if err := svc.RemoveFromShoppingCart(ctx, created.ID, author.ID.String()); !errors.Is(err, domain.ErrNotInShoppingCart) {
		t.Errorf("second remove err = %v, want %v", err, domain.ErrNotInShoppingCart)
	}
}

func TestDownloadShoppingCartAggregates(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")
	sugar := createTestIngredient(t, db, "sugar", "g")

	first, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200, sugar: 50}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	second, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 100}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	for _, id := range []string{first.ID, second.ID} {
		if _, err := svc.AddToShoppingCart(ctx, id, author.ID.String()); err != nil {
			t.Fatalf("AddToShoppingCart: %v", err)
		}
	}

	body, err := svc.DownloadShoppingCart(ctx, author.ID.String())
	if err != nil {
		t.Fatalf("DownloadShoppingCart: %v", err)
	}

	want := "flour - 300 g;\nsugar - 50 g;\n"
	if body != want {
		t.Errorf("shopping list = %q, want %q", body, want)
	}
}

func TestDownloadShoppingCartEmpty(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	u := createTestUser(t, db, "empty@example.com")
	body, err := svc.DownloadShoppingCart(ctx, u.ID.String())
	if err != nil {
		t.Fatalf("DownloadShoppingCart: %v", err)
	}
	if body != "" {
		t.Errorf("empty cart list = %q, want empty", body)
	}
}

func TestGetRecipesFilters(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	dinner := createTestTag(t, db, "Dinner", "dinner")
	flour := createTestIngredient(t, db, "flour", "g")

	pancakes, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200}),
		alice.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	stewReq := recipeRequest([]*entities.Tag{dinner}, map[*entities.Ingredient]int{flour: 100})
	stewReq.Name = "stew"
	if _, err := svc.CreateRecipe(ctx, stewReq, bob.ID.String()); err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}

	names := func(recipes []domain.RecipeResponse) map[string]bool {
		set := make(map[string]bool, len(recipes))
		for _, r := range recipes {
			set[r.Name] = true
		}
		return set
	}

	// single tag
	got, count, err := svc.GetRecipes(ctx, domain.RecipeFilter{Tags: []string{"breakfast"}}, "", 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes: %v", err)
	}
	if count != 1 || !names(got)["pancakes"] {
		t.Errorf("breakfast filter: count=%d recipes=%v", count, names(got))
	}

	// two slugs match the union
	got, count, err = svc.GetRecipes(ctx, domain.RecipeFilter{Tags: []string{"breakfast", "dinner"}}, "", 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes: %v", err)
	}
	if count != 2 {
		t.Errorf("union filter: count=%d recipes=%v", count, names(got))
	}

	// author filter
	got, count, err = svc.GetRecipes(ctx, domain.RecipeFilter{Author: bob.ID.String()}, "", 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes: %v", err)
	}
	if count != 1 || !names(got)["stew"] {
		t.Errorf("author filter: count=%d recipes=%v", count, names(got))
	}

	// favorited filter scoped to the acting user
	if _, err := svc.AddFavorite(ctx, pancakes.ID, bob.ID.String()); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	got, count, err = svc.GetRecipes(ctx, domain.RecipeFilter{IsFavorited: true}, bob.ID.String(), 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes: %v", err)
	}
	if count != 1 || !names(got)["pancakes"] {
		t.Errorf("favorited filter: count=%d recipes=%v", count, names(got))
	}

	// anonymous relation filters match nothing
	got, count, err = svc.GetRecipes(ctx, domain.RecipeFilter{IsFavorited: true}, "", 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes: %v", err)
	}
	if count != 0 || len(got) != 0 {
		t.Errorf("anonymous favorited filter: count=%d recipes=%v", count, names(got))
	}
}

func TestGetRecipesAnnotations(t *testing.T) {
	db, svc := newTestRecipeService(t)
	ctx := context.Background()

	author := createTestUser(t, db, "author@example.com")
	reader := createTestUser(t, db, "reader@example.com")
	breakfast := createTestTag(t, db, "Breakfast", "breakfast")
	flour := createTestIngredient(t, db, "flour", "g")

	created, err := svc.CreateRecipe(ctx,
		recipeRequest([]*entities.Tag{breakfast}, map[*entities.Ingredient]int{flour: 200}),
		author.ID.String(),
	)
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	if _, err := svc.AddFavorite(ctx, created.ID, reader.ID.String()); err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	follow := &entities.Follow{ID: uuid.New(), UserID: reader.ID, AuthorID: author.ID}
	if err := db.Create(follow).Error; err != nil {
		t.Fatalf("create follow: %v", err)
	}

	got, _, err := svc.GetRecipes(ctx, domain.RecipeFilter{}, reader.ID.String(), 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("recipes = %d, want 1", len(got))
	}
	if !got[0].IsFavorited {
		t.Errorf("is_favorited = false for reader")
	}
	if got[0].IsInShoppingCart {
		t.Errorf("is_in_shopping_cart = true, want false")
	}
	if !got[0].Author.IsSubscribed {
		t.Errorf("author.is_subscribed = false for follower")
	}

	anon, _, err := svc.GetRecipes(ctx, domain.RecipeFilter{}, "", 1, 10)
	if err != nil {
		t.Fatalf("GetRecipes anonymous: %v", err)
	}
	if anon[0].IsFavorited || anon[0].IsInShoppingCart || anon[0].Author.IsSubscribed {
		t.Errorf("anonymous annotations must be false: %+v", anon[0])
	}
}
