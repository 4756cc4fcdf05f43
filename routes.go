package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cookbook-api/models"
	"cookbook-api/services"
)

const welcomeMessage = "Welcome to the simplified Cookbook API!"

// recipeStore ist die Datenzugriffsschicht, die die Rezept-Routen benötigen.
type recipeStore interface {
	List(ctx context.Context) ([]models.Recipe, error)
	Get(ctx context.Context, id uint) (*models.Recipe, error)
	Create(ctx context.Context, in services.NewRecipe) (*models.Recipe, error)
}

type createRecipeRequest struct {
	Title       string   `json:"title" binding:"required"`
	CookingTime minutes  `json:"cooking_time" binding:"required,gt=0"`
	Description *string  `json:"description" binding:"required"` // leer erlaubt, fehlend nicht
	Ingredients []string `json:"ingredients" binding:"required"`
}

// recipeSummary ist die reduzierte Listenansicht ohne Beschreibung und Zutaten.
type recipeSummary struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	CookingTime int    `json:"cooking_time"`
	Views       int    `json:"views"`
}

type recipeDetail struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	CookingTime int      `json:"cooking_time"`
	Description string   `json:"description"`
	Views       int      `json:"views"`
	Ingredients []string `json:"ingredients"`
}

func newRecipeDetail(r *models.Recipe) recipeDetail {
	return recipeDetail{
		ID:          r.ID,
		Title:       r.Title,
		CookingTime: r.CookingTime,
		Description: r.Description,
		Views:       r.Views,
		Ingredients: r.IngredientNames(),
	}
}

func setupRootRoutes(router *gin.Engine, db *gorm.DB) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": welcomeMessage})
	})

	router.GET("/healthz", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func setupRecipeRoutes(router *gin.Engine, store recipeStore, log *zap.Logger) {
	rg := router.Group("/recipes")

	// GET - alle Rezepte, sortiert nach Aufrufen und Kochzeit
	rg.GET("", func(c *gin.Context) {
		recipes, err := store.List(c.Request.Context())
		if err != nil {
			log.Error("Database query for recipes failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		out := make([]recipeSummary, 0, len(recipes))
		for _, r := range recipes {
			out = append(out, recipeSummary{ID: r.ID, Title: r.Title, CookingTime: r.CookingTime, Views: r.Views})
		}
		c.JSON(http.StatusOK, out)
	})

	// GET - Rezeptdetails, jeder Aufruf erhöht views
	rg.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []fieldError{{Field: "id", Message: "must be an integer"}}})
			return
		}
		// Nicht-positive IDs können nicht existieren
		if id <= 0 {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Recipe not found"})
			return
		}

		recipe, err := store.Get(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, services.ErrRecipeNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"detail": "Recipe not found"})
				return
			}
			log.Error("Database error while fetching recipe", zap.Int64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		recipeViewsCounter.Inc()
		c.JSON(http.StatusOK, newRecipeDetail(recipe))
	})

	// POST - neues Rezept mit Zutaten
	rg.POST("", func(c *gin.Context) {
		var req createRecipeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Debug("Invalid request body for recipe creation", zap.Error(err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetails(err)})
			return
		}

		recipe, err := store.Create(c.Request.Context(), services.NewRecipe{
			Title:       req.Title,
			CookingTime: int(req.CookingTime),
			Description: *req.Description,
			Ingredients: req.Ingredients,
		})
		if err != nil {
			log.Error("Failed to create recipe", zap.String("title", req.Title), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save recipe"})
			return
		}

		recipesCreatedCounter.Inc()
		c.JSON(http.StatusCreated, newRecipeDetail(recipe))
	})
}
