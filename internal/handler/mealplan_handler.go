package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealplan/internal/mealplan"
	"github.com/hitoshi/mealplan/internal/model"
)

// MealPlanServiceInterface は献立ハンドラーが必要とするサービスインターフェース。
type MealPlanServiceInterface interface {
	// Upsert は献立に食事を追加する。mealPlanIDが空の場合は新規作成する。
	Upsert(ctx context.Context, userID string, week int, input mealplan.MealInput, mealPlanID string) (*model.MealPlan, error)
	// Delete は献立を削除し、削除したIDを返す。
	Delete(ctx context.Context, userID, mealPlanID string) (string, error)
	// ListForUser はユーザーの献立一覧をweek昇順で返す。
	ListForUser(ctx context.Context, userID string) ([]*model.MealPlan, error)
	// Get はユーザーが所有する献立を返す。
	Get(ctx context.Context, userID, mealPlanID string) (*model.MealPlan, error)
	// UpdateMeal は献立内の食事を部分更新する。
	UpdateMeal(ctx context.Context, userID, mealPlanID, mealID string, patch model.MealPatch) (*model.MealPlan, error)
}

// MealPlanHandler は献立管理のHTTPハンドラー。
type MealPlanHandler struct {
	service MealPlanServiceInterface
}

// NewMealPlanHandler はMealPlanHandlerを生成する。
func NewMealPlanHandler(service MealPlanServiceInterface) *MealPlanHandler {
	return &MealPlanHandler{service: service}
}

// mealRequest は検索結果の表現のまま送られてくる食事。
type mealRequest struct {
	MealID int      `json:"mealId"`
	Name   string   `json:"name"`
	Diets  []string `json:"diets"`
	Image  string   `json:"image"`
}

type upsertMealPlanRequest struct {
	Week       int          `json:"week"`
	Meal       *mealRequest `json:"meal"`
	MealPlanID string       `json:"mealplanId"`
}

// mealPatchRequest は保存済みの食事のフィールド名で受け取る部分更新。
type mealPatchRequest struct {
	RecipeID *int      `json:"recipeId"`
	Title    *string   `json:"title"`
	Diets    *[]string `json:"diets"`
	Image    *string   `json:"image"`
}

type mealPlanResponse struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Week      int          `json:"week"`
	Meals     []model.Meal `json:"meals"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type deleteMealPlanResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Upsert は献立の作成または食事の追加を処理する。
// POST /api/mealplans
func (h *MealPlanHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req upsertMealPlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Week == 0 || req.Meal == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidArgumentError("Missing required fields"))
		return
	}

	plan, err := h.service.Upsert(r.Context(), userID, req.Week, mealplan.MealInput{
		RecipeID: req.Meal.MealID,
		Title:    req.Meal.Name,
		Diets:    req.Meal.Diets,
		Image:    req.Meal.Image,
	}, req.MealPlanID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMealPlanResponse(plan))
}

// List はユーザーの献立一覧を返す。
// GET /api/mealplans
func (h *MealPlanHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	plans, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]mealPlanResponse, len(plans))
	for i, p := range plans {
		resp[i] = toMealPlanResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get は献立を1件返す。
// GET /api/mealplans/{id}
func (h *MealPlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	plan, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMealPlanResponse(plan))
}

// Delete は献立を削除する。
// DELETE /api/mealplans/{id}
func (h *MealPlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	id, err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteMealPlanResponse{
		Message: "Meal plan deleted successfully",
		ID:      id,
	})
}

// UpdateMeal は献立内の食事を部分更新する。
// PUT /api/mealplans/{id}/meals/{mealId}
func (h *MealPlanHandler) UpdateMeal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req mealPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	plan, err := h.service.UpdateMeal(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "mealId"), model.MealPatch{
		RecipeID: req.RecipeID,
		Title:    req.Title,
		Diets:    req.Diets,
		Image:    req.Image,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMealPlanResponse(plan))
}

func toMealPlanResponse(plan *model.MealPlan) mealPlanResponse {
	meals := plan.Meals
	if meals == nil {
		meals = []model.Meal{}
	}
	return mealPlanResponse{
		ID:        plan.ID,
		UserID:    plan.UserID,
		Week:      plan.Week,
		Meals:     meals,
		CreatedAt: plan.CreatedAt,
		UpdatedAt: plan.UpdatedAt,
	}
}
