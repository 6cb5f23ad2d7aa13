package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealplan/internal/model"
)

// MealServiceInterface はレシピハンドラーが必要とするサービスインターフェース。
type MealServiceInterface interface {
	// Search はユーザーの食事制限に合わせてレシピを検索する。
	Search(ctx context.Context, userID, query string) (*model.RecipeSearchResult, error)
	// GetDetails はレシピ詳細を返す。
	GetDetails(ctx context.Context, recipeID int) (*model.RecipeDetails, error)
}

// MealHandler はレシピ検索・詳細のHTTPハンドラー。
type MealHandler struct {
	service MealServiceInterface
}

// NewMealHandler はMealHandlerを生成する。
func NewMealHandler(service MealServiceInterface) *MealHandler {
	return &MealHandler{service: service}
}

type searchResponse struct {
	Results []model.RecipeSummary `json:"results"`
	Total   int                   `json:"total"`
	Offset  int                   `json:"offset"`
	Query   string                `json:"query"`
}

// Search はレシピを検索する。
// GET /api/meals/search?meal=<query>
func (h *MealHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("meal"))
	if query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("Meal query parameter is required"))
		return
	}

	result, err := h.service.Search(r.Context(), userID, query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := result.Results
	if results == nil {
		results = []model.RecipeSummary{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Results: results,
		Total:   result.Total,
		Offset:  result.Offset,
		Query:   query,
	})
}

// GetDetails はレシピ詳細を返す。
// GET /api/meals/{id}
func (h *MealHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	recipeID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || recipeID <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidIDError("meal"))
		return
	}

	details, err := h.service.GetDetails(r.Context(), recipeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}
