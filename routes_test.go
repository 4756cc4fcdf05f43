package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cookbook-api/models"
	"cookbook-api/services"
	"cookbook-api/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.OpenMemory(zap.NewNop())
	require.NoError(t, err)
	svc := services.NewRecipeService(db, zap.NewNop())
	return &testServer{router: newRouter(db, svc, zap.NewNop()), db: db}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, s.router, method, path, body)
}

func serve(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) recipeCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, s.db.Model(&models.Recipe{}).Count(&n).Error)
	return n
}

func TestRootEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "Welcome to the simplified Cookbook API!"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestRequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestCookbookScenario(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/recipes", map[string]any{
		"title":        "Toast",
		"cooking_time": 5,
		"description":  "Heat bread",
		"ingredients":  []string{"Bread"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[recipeDetail](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Toast", created.Title)
	assert.Equal(t, 5, created.CookingTime)
	assert.Equal(t, "Heat bread", created.Description)
	assert.Zero(t, created.Views)
	assert.Equal(t, []string{"Bread"}, created.Ingredients)

	path := fmt.Sprintf("/recipes/%d", created.ID)
	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[recipeDetail](t, w).Views)

	w = s.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[recipeDetail](t, w)
	assert.Equal(t, 2, second.Views)
	assert.Equal(t, []string{"Bread"}, second.Ingredients)

	w = s.do(t, http.MethodGet, "/recipes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Toast", list[0]["title"])
	assert.EqualValues(t, 2, list[0]["views"])
	assert.NotContains(t, list[0], "description")
	assert.NotContains(t, list[0], "ingredients")

	w = s.do(t, http.MethodGet, "/recipes/999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"detail":"Recipe not found"}`, w.Body.String())
}

func TestCreateRecipeKeepsDuplicateIngredients(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/recipes", map[string]any{
		"title":        "Pancakes",
		"cooking_time": 15,
		"description":  "Mix and fry",
		"ingredients":  []string{"Egg", "Milk", "Egg"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.ElementsMatch(t, []string{"Egg", "Milk", "Egg"}, decode[recipeDetail](t, w).Ingredients)
}

func TestCreateRecipeWithEmptyIngredientList(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/recipes", map[string]any{
		"title":        "Tea",
		"cooking_time": 3,
		"description":  "Steep",
		"ingredients":  []string{},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, w)["ingredients"]))
}

func TestListRecipesEmpty(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/recipes", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListRecipesOrdering(t *testing.T) {
	s := newTestServer(t)
	ids := map[string]uint{}
	for _, r := range []struct {
		title string
		time  int
	}{{"Slow", 60}, {"Fast", 10}, {"Popular", 30}} {
		w := s.do(t, http.MethodPost, "/recipes", map[string]any{
			"title": r.title, "cooking_time": r.time, "description": "d", "ingredients": []string{},
		})
		require.Equal(t, http.StatusCreated, w.Code)
		ids[r.title] = decode[recipeDetail](t, w).ID
	}
	s.do(t, http.MethodGet, fmt.Sprintf("/recipes/%d", ids["Popular"]), nil)

	w := s.do(t, http.MethodGet, "/recipes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]recipeSummary](t, w)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"Popular", "Fast", "Slow"}, []string{list[0].Title, list[1].Title, list[2].Title})
}

type validationResponse struct {
	Detail []fieldError `json:"detail"`
}

func TestCreateRecipeValidation(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{
			name:  "missing title",
			body:  map[string]any{"cooking_time": 5, "description": "d", "ingredients": []string{"a"}},
			field: "title",
		},
		{
			name:  "empty title",
			body:  map[string]any{"title": "", "cooking_time": 5, "description": "d", "ingredients": []string{"a"}},
			field: "title",
		},
		{
			name:  "zero cooking time",
			body:  map[string]any{"title": "t", "cooking_time": 0, "description": "d", "ingredients": []string{"a"}},
			field: "cooking_time",
		},
		{
			name:  "negative cooking time",
			body:  map[string]any{"title": "t", "cooking_time": -5, "description": "d", "ingredients": []string{"a"}},
			field: "cooking_time",
		},
		{
			name:  "cooking time not an integer",
			body:  map[string]any{"title": "t", "cooking_time": "soon", "description": "d", "ingredients": []string{"a"}},
			field: "cooking_time",
		},
		{
			name:  "missing description",
			body:  map[string]any{"title": "t", "cooking_time": 5, "ingredients": []string{"a"}},
			field: "description",
		},
		{
			name:  "missing ingredients",
			body:  map[string]any{"title": "t", "cooking_time": 5, "description": "d"},
			field: "ingredients",
		},
		{
			name:  "null description",
			body:  map[string]any{"title": "t", "cooking_time": 5, "description": nil, "ingredients": []string{"a"}},
			field: "description",
		},
		{
			name:  "fractional cooking time",
			body:  `{"title": "t", "cooking_time": 5.5, "description": "d", "ingredients": ["a"]}`,
			field: "cooking_time",
		},
		{
			name:  "ingredients not a list",
			body:  map[string]any{"title": "t", "cooking_time": 5, "description": "d", "ingredients": "a"},
			field: "ingredients",
		},
		{
			name:  "malformed json",
			body:  `{"title": "t",`,
			field: "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(t, http.MethodPost, "/recipes", tt.body)

			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			resp := decode[validationResponse](t, w)
			fields := make([]string, 0, len(resp.Detail))
			for _, d := range resp.Detail {
				fields = append(fields, d.Field)
				assert.NotEmpty(t, d.Message)
			}
			assert.Contains(t, fields, tt.field)
			assert.Zero(t, s.recipeCount(t))
		})
	}
}

func TestCreateRecipeLenientFields(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		cookingTime int
		description string
		ingredients []string
	}{
		{
			name:        "empty description",
			body:        `{"title": "Toast", "cooking_time": 5, "description": "", "ingredients": ["Bread"]}`,
			cookingTime: 5,
			description: "",
			ingredients: []string{"Bread"},
		},
		{
			name:        "blank ingredient names",
			body:        `{"title": "Toast", "cooking_time": 5, "description": "d", "ingredients": ["", "Bread", ""]}`,
			cookingTime: 5,
			description: "d",
			ingredients: []string{"", "Bread", ""},
		},
		{
			name:        "whole number written as float",
			body:        `{"title": "Toast", "cooking_time": 5.0, "description": "d", "ingredients": []}`,
			cookingTime: 5,
			description: "d",
			ingredients: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			w := s.do(t, http.MethodPost, "/recipes", tt.body)

			require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
			got := decode[recipeDetail](t, w)
			assert.Equal(t, tt.cookingTime, got.CookingTime)
			assert.Equal(t, tt.description, got.Description)
			assert.ElementsMatch(t, tt.ingredients, got.Ingredients)
			assert.Equal(t, int64(1), s.recipeCount(t))

			w = s.do(t, http.MethodGet, fmt.Sprintf("/recipes/%d", got.ID), nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.description, decode[recipeDetail](t, w).Description)
		})
	}
}

func TestGetRecipeNonPositiveID(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []string{"0", "-1"} {
		w := s.do(t, http.MethodGet, "/recipes/"+id, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, id)
		assert.JSONEq(t, `{"detail":"Recipe not found"}`, w.Body.String())
	}
}

func TestGetRecipeInvalidID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/recipes/abc", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"field":"id"`), w.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/recipes", map[string]any{
		"title": "Toast", "cooking_time": 5, "description": "d", "ingredients": []string{"Bread"},
	})

	w := s.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cookbook_recipes_created_total")
	assert.Contains(t, w.Body.String(), "cookbook_http_requests_total")
}

type failingStore struct{ err error }

func (f failingStore) List(context.Context) ([]models.Recipe, error) { return nil, f.err }

func (f failingStore) Get(context.Context, uint) (*models.Recipe, error) { return nil, f.err }

func (f failingStore) Create(context.Context, services.NewRecipe) (*models.Recipe, error) {
	return nil, f.err
}

func TestStorageErrorsAreInternal(t *testing.T) {
	db, err := storage.OpenMemory(zap.NewNop())
	require.NoError(t, err)
	router := newRouter(db, failingStore{err: errors.New("connection reset")}, zap.NewNop())

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/recipes", nil},
		{http.MethodGet, "/recipes/1", nil},
		{http.MethodPost, "/recipes", map[string]any{
			"title": "Toast", "cooking_time": 5, "description": "d", "ingredients": []string{"Bread"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}
