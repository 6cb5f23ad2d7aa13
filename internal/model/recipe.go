package model

// RecipeSummary は検索結果1件を正規化したもの。
type RecipeSummary struct {
	MealID         int      `json:"mealId"`
	Name           string   `json:"name"`
	Diets          []string `json:"diets"`
	Image          string   `json:"image"`
	ReadyInMinutes int      `json:"readyInMinutes"`
	Servings       int      `json:"servings"`
	SourceURL      string   `json:"sourceUrl"`
	Summary        string   `json:"summary"`
	HealthScore    float64  `json:"healthScore"`
}

// RecipeSearchResult はレシピ検索の結果。
type RecipeSearchResult struct {
	Results []RecipeSummary
	Total   int
	Offset  int
}

// Ingredient はレシピ詳細の材料1件。
type Ingredient struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Original string  `json:"original"`
}

// RecipeDetails はレシピ詳細を正規化したもの。
type RecipeDetails struct {
	RecipeSummary
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions string       `json:"instructions"`
	Cuisines     []string     `json:"cuisines"`
	DishTypes    []string     `json:"dishTypes"`
}
