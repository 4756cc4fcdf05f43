package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"cookbook-api/models"
	"cookbook-api/storage"
)

// ExportedRecipe ist die Darstellung eines Rezepts im Katalog-Snapshot.
type ExportedRecipe struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	CookingTime int      `json:"cooking_time"`
	Description string   `json:"description"`
	Views       int      `json:"views"`
	Ingredients []string `json:"ingredients"`
}

// CatalogSnapshot ist der Inhalt einer Export-Datei.
type CatalogSnapshot struct {
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Recipes    []ExportedRecipe `json:"recipes"`
}

// CatalogExporter schreibt einen JSON-Snapshot aller Rezepte nach S3.
type CatalogExporter struct {
	Recipes *RecipeService
	Client  storage.ObjectPutter
	Logger  *zap.Logger

	BaseURL string
	Bucket  string
	Prefix  string

	now func() time.Time
}

// NewCatalogExporter erstellt einen Exporter für den angegebenen Bucket.
func NewCatalogExporter(recipes *RecipeService, client storage.ObjectPutter, logger *zap.Logger, baseURL, bucket, prefix string) *CatalogExporter {
	return &CatalogExporter{
		Recipes: recipes,
		Client:  client,
		Logger:  logger,
		BaseURL: baseURL,
		Bucket:  bucket,
		Prefix:  prefix,
		now:     time.Now,
	}
}

// Snapshot liest den aktuellen Katalog, ohne Aufrufzähler zu verändern.
func (e *CatalogExporter) Snapshot(ctx context.Context) (*CatalogSnapshot, error) {
	recipes, err := e.Recipes.ListWithIngredients(ctx)
	if err != nil {
		return nil, err
	}

	snap := &CatalogSnapshot{
		ExportedAt: e.now().UTC(),
		Count:      len(recipes),
		Recipes:    make([]ExportedRecipe, 0, len(recipes)),
	}
	for i := range recipes {
		snap.Recipes = append(snap.Recipes, toExported(&recipes[i]))
	}
	return snap, nil
}

// Export erstellt einen Snapshot, lädt ihn hoch und gibt den Objekt-Key zurück.
func (e *CatalogExporter) Export(ctx context.Context) (string, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode catalog snapshot: %w", err)
	}

	key := path.Join(e.Prefix, fmt.Sprintf("recipes-%s.json", snap.ExportedAt.Format("2006-01-02T15-04-05Z")))
	link, err := storage.UploadFile(ctx, e.Client, e.BaseURL, e.Bucket, key, "application/json", data)
	if err != nil {
		return "", err
	}

	e.Logger.Info("Katalog exportiert", zap.String("link", link), zap.Int("recipes", snap.Count))
	return key, nil
}

func toExported(r *models.Recipe) ExportedRecipe {
	return ExportedRecipe{
		ID:          r.ID,
		Title:       r.Title,
		CookingTime: r.CookingTime,
		Description: r.Description,
		Views:       r.Views,
		Ingredients: r.IngredientNames(),
	}
}
