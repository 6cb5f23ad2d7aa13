package model

import "time"

// MaxMealsPerPlan は1つの献立に登録できる食事の上限。
const MaxMealsPerPlan = 3

// Meal は献立に埋め込まれる1食分のレシピ情報。
// IDは献立内での識別にのみ使う。
type Meal struct {
	ID       string   `json:"id"`
	RecipeID int      `json:"recipeId"`
	Title    string   `json:"title"`
	Diets    []string `json:"diets"`
	Image    string   `json:"image"`
}

// MealPatch は食事の部分更新内容。nilのフィールドは既存値を維持する。
type MealPatch struct {
	RecipeID *int
	Title    *string
	Diets    *[]string
	Image    *string
}

// MealPlan はユーザーの週単位の献立を表す。
type MealPlan struct {
	ID        string
	UserID    string
	Week      int
	Meals     []Meal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AddMeal は献立に食事を追加する。
// 上限を超える場合はCAPACITY_EXCEEDEDを返し、献立は変更しない。
func (p *MealPlan) AddMeal(meal Meal) error {
	if len(p.Meals) >= MaxMealsPerPlan {
		return NewCapacityExceededError()
	}
	p.Meals = append(p.Meals, meal)
	return nil
}

// FindMeal は献立内IDで食事の位置を返す。見つからない場合は-1を返す。
func (p *MealPlan) FindMeal(mealID string) int {
	for i, m := range p.Meals {
		if m.ID == mealID {
			return i
		}
	}
	return -1
}

// Apply はパッチを浅くマージした食事を返す。
func (m Meal) Apply(patch MealPatch) Meal {
	if patch.RecipeID != nil {
		m.RecipeID = *patch.RecipeID
	}
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Diets != nil {
		m.Diets = *patch.Diets
	}
	if patch.Image != nil {
		m.Image = *patch.Image
	}
	return m
}
