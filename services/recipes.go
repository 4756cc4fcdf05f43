package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cookbook-api/models"
)

// ingredientBatchSize hält Multi-Row-Inserts unter dem Parameterlimit von PostgreSQL.
const ingredientBatchSize = 500

// ErrRecipeNotFound wird zurückgegeben, wenn keine Rezept-ID passt.
var ErrRecipeNotFound = errors.New("recipe not found")

// NewRecipe enthält die bereits validierten Eingabedaten für ein neues Rezept.
type NewRecipe struct {
	Title       string
	CookingTime int
	Description string
	Ingredients []string
}

// RecipeService kapselt alle Lese- und Schreibzugriffe auf Rezepte und Zutaten.
type RecipeService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewRecipeService erstellt eine neue Instanz des RecipeService.
func NewRecipeService(db *gorm.DB, logger *zap.Logger) *RecipeService {
	return &RecipeService{
		DB:     db,
		Logger: logger,
	}
}

func byPopularity(db *gorm.DB) *gorm.DB {
	return db.Order("views desc").Order("cooking_time asc").Order("id asc")
}

func byInsertion(db *gorm.DB) *gorm.DB {
	return db.Order("id asc")
}

// List liefert alle Rezepte ohne Zutaten, sortiert nach Aufrufen (absteigend) und Kochzeit (aufsteigend).
func (s *RecipeService) List(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.DB.WithContext(ctx).Scopes(byPopularity).Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return recipes, nil
}

// ListWithIngredients liefert alle Rezepte in derselben Reihenfolge wie List, inklusive Zutaten.
// Der Aufrufzähler bleibt unverändert.
func (s *RecipeService) ListWithIngredients(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	err := s.DB.WithContext(ctx).
		Preload("Ingredients", byInsertion).
		Scopes(byPopularity).
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("list recipes with ingredients: %w", err)
	}
	return recipes, nil
}

// Get erhöht den Aufrufzähler um eins und liefert das Rezept mit dem neuen Stand.
// Zähler-Update und Lesen laufen in einer Transaktion.
func (s *RecipeService) Get(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Recipe{}).
			Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecipeNotFound
		}

		return tx.Preload("Ingredients", byInsertion).First(&recipe, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrRecipeNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("get recipe %d: %w", id, err)
	}

	return &recipe, nil
}

// Create legt Rezept und Zutaten atomar an. Schlägt ein Insert fehl, wird nichts gespeichert.
func (s *RecipeService) Create(ctx context.Context, in NewRecipe) (*models.Recipe, error) {
	recipe := models.Recipe{
		Title:       in.Title,
		CookingTime: in.CookingTime,
		Description: in.Description,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Ingredients").Create(&recipe).Error; err != nil {
			return err
		}
		if len(in.Ingredients) == 0 {
			return nil
		}

		ingredients := make([]models.Ingredient, 0, len(in.Ingredients))
		for _, name := range in.Ingredients {
			ingredients = append(ingredients, models.Ingredient{RecipeID: recipe.ID, IngredientName: name})
		}
		if err := tx.CreateInBatches(&ingredients, ingredientBatchSize).Error; err != nil {
			return err
		}
		recipe.Ingredients = ingredients
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create recipe %q: %w", in.Title, err)
	}

	s.Logger.Info("Rezept angelegt",
		zap.Uint("id", recipe.ID),
		zap.String("title", recipe.Title),
		zap.Int("ingredients", len(recipe.Ingredients)))
	return &recipe, nil
}
