package handler

import (
	"context"
	"strings"

	"github.com/hitoshi/mealplan/internal/model"
)

// RecipeGateway は外部レシピAPIクライアントのインターフェース。
type RecipeGateway interface {
	Search(ctx context.Context, query string, diets []string) (*model.RecipeSearchResult, error)
	GetDetails(ctx context.Context, recipeID int) (*model.RecipeDetails, error)
}

// PreferenceSource はユーザーの食事制限タグを取得するインターフェース。
type PreferenceSource interface {
	Preferences(ctx context.Context, userID string) ([]string, error)
}

// MealServiceAdapter はレシピクライアントとユーザーの食事制限を組み合わせて
// MealServiceInterface に適合させるアダプタ。
type MealServiceAdapter struct {
	recipes RecipeGateway
	prefs   PreferenceSource
}

// NewMealServiceAdapter はMealServiceAdapterを生成する。
func NewMealServiceAdapter(recipes RecipeGateway, prefs PreferenceSource) *MealServiceAdapter {
	return &MealServiceAdapter{recipes: recipes, prefs: prefs}
}

// Search はユーザーの食事制限タグをdietフィルタとしてレシピを検索する。
// クエリが空の場合はユーザー情報も外部APIも参照しない。
func (a *MealServiceAdapter) Search(ctx context.Context, userID, query string) (*model.RecipeSearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.NewInvalidArgumentError("Meal query parameter is required")
	}

	diets, err := a.prefs.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.recipes.Search(ctx, query, diets)
}

// GetDetails はレシピ詳細を返す。
func (a *MealServiceAdapter) GetDetails(ctx context.Context, recipeID int) (*model.RecipeDetails, error) {
	return a.recipes.GetDetails(ctx, recipeID)
}

var _ MealServiceInterface = (*MealServiceAdapter)(nil)
