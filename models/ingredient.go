package models

// Ingredient gehört zu genau einem Rezept. Doppelte Namen sind erlaubt.
type Ingredient struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	RecipeID       uint   `json:"recipe_id" gorm:"not null;index"`
	IngredientName string `json:"ingredient_name" gorm:"column:ingredient_name;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Ingredient) TableName() string {
	return "recipe_ingredients"
}
