package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"foodgram-backend/domain"
	"foodgram-backend/entities"
	"foodgram-backend/internal/api/handlers"
	"foodgram-backend/internal/api/routes"
	"foodgram-backend/internal/middleware"
	"foodgram-backend/internal/utils"
	"foodgram-backend/pkg/ingredient"
	"foodgram-backend/pkg/jwt"
	"foodgram-backend/pkg/recipe"
	"foodgram-backend/pkg/tag"
	"foodgram-backend/pkg/user"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
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

type testEnv struct {
	app        *fiber.App
	db         *gorm.DB
	jwtService jwt.JWTService
}

func newTestApp(t *testing.T) *testEnv {
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

	utils.InitValidator()
	app := fiber.New()

	userRepository := user.NewUserRepository(db)
	tagRepository := tag.NewTagRepository(db)
	ingredientRepository := ingredient.NewIngredientRepository(db)
	recipeRepository := recipe.NewRecipeRepository(db)

	jwtService := jwt.NewJWTService()
	userService := user.NewUserService(userRepository, jwtService)
	tagService := tag.NewTagService(tagRepository)
	ingredientService := ingredient.NewIngredientService(ingredientRepository)
	recipeService := recipe.NewRecipeService(
		recipeRepository,
		tagRepository,
		ingredientRepository,
		userRepository,
		fakeStorage{},
	)

	routesConfig := routes.Config{
		App:               app,
		UserHandler:       handlers.NewUserHandler(userService, utils.Validate),
		TagHandler:        handlers.NewTagHandler(tagService, utils.Validate),
		IngredientHandler: handlers.NewIngredientHandler(ingredientService, utils.Validate),
		RecipeHandler:     handlers.NewRecipeHandler(recipeService, utils.Validate),
		Middleware:        middleware.NewMiddleware(),
		JWTService:        jwtService,
	}
	routesConfig.Setup()

	return &testEnv{app: app, db: db, jwtService: jwtService}
}

func (e *testEnv) request(t *testing.T, method, target, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return res
}

func decodeData(t *testing.T, res *http.Response, out any) {
	t.Helper()

	var envelope struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func (e *testEnv) registerAndLogin(t *testing.T, email, username string) string {
	t.Helper()

	res := e.request(t, fiber.MethodPost, "/api/v1/users/register", "", fiber.Map{
		"email":      email,
		"username":   username,
		"first_name": "Test",
		"last_name":  "User",
		"password":   "correct-horse",
	})
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("register status = %d", res.StatusCode)
	}

	res = e.request(t, fiber.MethodPost, "/api/v1/users/login", "", fiber.Map{
		"email":    email,
		"password": "correct-horse",
	})
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("login status = %d", res.StatusCode)
	}

	var data struct {
		Token string `json:"token"`
	}
	decodeData(t, res, &data)
	if data.Token == "" {
		t.Fatalf("login returned no token")
	}
	return data.Token
}

func (e *testEnv) seedCatalog(t *testing.T) (*entities.Tag, *entities.Ingredient) {
	t.Helper()

	tg := &entities.Tag{ID: uuid.New(), Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"}
	if err := e.db.Create(tg).Error; err != nil {
		t.Fatalf("create tag: %v", err)
	}
	ing := &entities.Ingredient{ID: uuid.New(), Name: "flour", MeasurementUnit: "g"}
	if err := e.db.Create(ing).Error; err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	return tg, ing
}

func recipeBody(tg *entities.Tag, ing *entities.Ingredient) fiber.Map {
	return fiber.Map{
		"name":         "pancakes",
		"text":         "mix and fry",
		"image":        testImage,
		"cooking_time": 15,
		"tags":         []string{tg.ID.String()},
		"ingredients": []fiber.Map{
			{"id": ing.ID.String(), "amount": 200},
		},
	}
}

func TestRecipeEndpointsRequireAuth(t *testing.T) {
	env := newTestApp(t)
	tg, ing := env.seedCatalog(t)

	res := env.request(t, fiber.MethodPost, "/api/v1/recipes/", "", recipeBody(tg, ing))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("anonymous create status = %d, want 401", res.StatusCode)
	}

	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/download_shopping_cart", "", nil)
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("anonymous download status = %d, want 401", res.StatusCode)
	}

	// listing stays public
	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/", "", nil)
	if res.StatusCode != fiber.StatusOK {
		t.Errorf("anonymous listing status = %d, want 200", res.StatusCode)
	}
}

func TestRecipeLifecycleOverHTTP(t *testing.T) {
	env := newTestApp(t)
	tg, ing := env.seedCatalog(t)
	token := env.registerAndLogin(t, "author@example.com", "author")

	res := env.request(t, fiber.MethodPost, "/api/v1/recipes/", token, recipeBody(tg, ing))
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("create status = %d", res.StatusCode)
	}
	var created domain.RecipeResponse
	decodeData(t, res, &created)
	if created.Name != "pancakes" || len(created.Ingredients) != 1 {
		t.Errorf("created = %+v", created)
	}

	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/"+created.ID, "", nil)
	if res.StatusCode != fiber.StatusOK {
		t.Errorf("detail status = %d", res.StatusCode)
	}

	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/"+uuid.NewString(), "", nil)
	if res.StatusCode != fiber.StatusNotFound {
		t.Errorf("unknown detail status = %d, want 404", res.StatusCode)
	}

	// favorite toggle
	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	if res.StatusCode != fiber.StatusCreated {
		t.Errorf("favorite status = %d, want 201", res.StatusCode)
	}
	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	if res.StatusCode != fiber.StatusBadRequest {
		t.Errorf("double favorite status = %d, want 400", res.StatusCode)
	}
	res = env.request(t, fiber.MethodDelete, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	if res.StatusCode != fiber.StatusNoContent {
		t.Errorf("unfavorite status = %d, want 204", res.StatusCode)
	}
	res = env.request(t, fiber.MethodDelete, "/api/v1/recipes/"+created.ID+"/favorite", token, nil)
	if res.StatusCode != fiber.StatusBadRequest {
		t.Errorf("double unfavorite status = %d, want 400", res.StatusCode)
	}

	// shopping cart and the text export
	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/"+created.ID+"/shopping_cart", token, nil)
	if res.StatusCode != fiber.StatusCreated {
		t.Errorf("shopping cart status = %d, want 201", res.StatusCode)
	}
	res = env.request(t, fiber.MethodGet, "/api/v1/recipes/download_shopping_cart", token, nil)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("download status = %d", res.StatusCode)
	}
	if ct := res.Header.Get(fiber.HeaderContentType); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("download content type = %q", ct)
	}
	if cd := res.Header.Get(fiber.HeaderContentDisposition); !strings.Contains(cd, "attachment") {
		t.Errorf("download disposition = %q", cd)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read download body: %v", err)
	}
	if string(body) != "flour - 200 g;\n" {
		t.Errorf("download body = %q", string(body))
	}

	// only the author may delete
	otherToken := env.registerAndLogin(t, "other@example.com", "other")
	res = env.request(t, fiber.MethodDelete, "/api/v1/recipes/"+created.ID, otherToken, nil)
	if res.StatusCode != fiber.StatusForbidden {
		t.Errorf("foreign delete status = %d, want 403", res.StatusCode)
	}
	res = env.request(t, fiber.MethodDelete, "/api/v1/recipes/"+created.ID, token, nil)
	if res.StatusCode != fiber.StatusNoContent {
		t.Errorf("delete status = %d, want 204", res.StatusCode)
	}
}

func TestSubscriptionEndpoints(t *testing.T) {
	env := newTestApp(t)
	aliceToken := env.registerAndLogin(t, "alice@example.com", "alice")
	env.registerAndLogin(t, "bob@example.com", "bob")

	var bob entities.User
	if err := env.db.Where("username = ?", "bob").First(&bob).Error; err != nil {
		t.Fatalf("load bob: %v", err)
	}

	res := env.request(t, fiber.MethodGet, "/api/v1/users/"+bob.ID.String()+"/subscribe", aliceToken, nil)
	if res.StatusCode != fiber.StatusCreated {
		t.Errorf("subscribe status = %d, want 201", res.StatusCode)
	}
	res = env.request(t, fiber.MethodGet, "/api/v1/users/"+bob.ID.String()+"/subscribe", aliceToken, nil)
	if res.StatusCode != fiber.StatusBadRequest {
		t.Errorf("double subscribe status = %d, want 400", res.StatusCode)
	}

	res = env.request(t, fiber.MethodGet, "/api/v1/users/subscriptions", aliceToken, nil)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("subscriptions status = %d", res.StatusCode)
	}
	var data struct {
		Subscriptions []domain.SubscriptionResponse `json:"subscriptions"`
	}
	decodeData(t, res, &data)
	if len(data.Subscriptions) != 1 || data.Subscriptions[0].Username != "bob" {
		t.Errorf("subscriptions = %+v", data.Subscriptions)
	}

	res = env.request(t, fiber.MethodDelete, "/api/v1/users/"+bob.ID.String()+"/subscribe", aliceToken, nil)
	if res.StatusCode != fiber.StatusNoContent {
		t.Errorf("unsubscribe status = %d, want 204", res.StatusCode)
	}
}
