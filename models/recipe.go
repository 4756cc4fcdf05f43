package models

// Recipe ist ein Rezept mit Zubereitungszeit, Beschreibung und Aufrufzähler.
type Recipe struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Title       string `json:"title" gorm:"not null;index"`
	CookingTime int    `json:"cooking_time" gorm:"not null"` // Minuten
	Description string `json:"description" gorm:"type:text;not null"`
	Views       int    `json:"views" gorm:"not null;default:0"`

	Ingredients []Ingredient `json:"-" gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

// TableName gibt explizit den Tabellennamen an.
func (Recipe) TableName() string {
	return "recipes"
}

// IngredientNames liefert die Zutatennamen in gespeicherter Reihenfolge.
func (r *Recipe) IngredientNames() []string {
	names := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		names = append(names, ing.IngredientName)
	}
	return names
}
