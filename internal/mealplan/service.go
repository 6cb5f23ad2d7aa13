// Package mealplan は献立管理のドメインロジックを提供する。
//
// すべての操作は所有ユーザーIDで絞り込み、他ユーザーの献立は存在しないものとして扱う。
// 食事数の上限はmodel.MealPlan.AddMealで事前に確認し、保存時はリポジトリの条件付き追加で保証する。
package mealplan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/mealplan/internal/metrics"
	"github.com/hitoshi/mealplan/internal/model"
	"github.com/hitoshi/mealplan/internal/repository"
)

// ImageValidator は食事の画像URLを検証するインターフェース。
type ImageValidator interface {
	ValidateURL(rawURL string) error
}

// MealInput は献立に追加する食事の入力値。
type MealInput struct {
	RecipeID int
	Title    string
	Diets    []string
	Image    string
}

// Service は献立管理のサービス層。
type Service struct {
	repo    repository.MealPlanRepository
	images  ImageValidator
	metrics metrics.MetricsCollector
	now     func() time.Time
	newID   func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.MealPlanRepository, images ImageValidator, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		repo:    repo,
		images:  images,
		metrics: collector,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Upsert は献立に食事を追加する。
// mealPlanIDが空の場合は(userID, week)の献立を新規作成し、指定時は既存の献立に追記する。
func (s *Service) Upsert(ctx context.Context, userID string, week int, input MealInput, mealPlanID string) (*model.MealPlan, error) {
	// weekはINTEGERカラムに保存するため32bitの範囲に制限する
	if week < 1 || week > math.MaxInt32 {
		return nil, model.NewInvalidArgumentError("Week must be a positive integer")
	}
	meal, err := s.newMeal(input)
	if err != nil {
		return nil, err
	}

	if mealPlanID == "" {
		return s.create(ctx, userID, week, meal)
	}

	plan, err := s.findOwned(ctx, userID, mealPlanID)
	if err != nil {
		return nil, err
	}

	if err := plan.AddMeal(meal); err != nil {
		s.recordCapacity(err)
		return nil, err
	}

	// 読み込み後に他のリクエストが追加している可能性があるため、件数の確認はAppendMealでも行う
	stored, err := s.repo.AppendMeal(ctx, plan.ID, userID, meal, s.now())
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.recordCapacity(err)
			return nil, err
		}
		return nil, fmt.Errorf("献立の更新に失敗しました: %w", err)
	}

	slog.Info("献立に食事を追加しました",
		slog.String("user_id", userID),
		slog.String("meal_plan_id", stored.ID),
		slog.Int("meal_count", len(stored.Meals)),
	)
	return stored, nil
}

func (s *Service) recordCapacity(err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeCapacityExceeded {
		s.metrics.RecordCapacityRejected()
	}
}

func (s *Service) create(ctx context.Context, userID string, week int, meal model.Meal) (*model.MealPlan, error) {
	now := s.now()
	plan := &model.MealPlan{
		ID:        s.newID(),
		UserID:    userID,
		Week:      week,
		Meals:     []model.Meal{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := plan.AddMeal(meal); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("献立の作成に失敗しました: %w", err)
	}

	slog.Info("献立を作成しました",
		slog.String("user_id", userID),
		slog.String("meal_plan_id", plan.ID),
		slog.Int("week", week),
	)
	return plan, nil
}

// Delete は献立を削除し、削除したIDを返す。
func (s *Service) Delete(ctx context.Context, userID, mealPlanID string) (string, error) {
	if err := validateID(mealPlanID); err != nil {
		return "", err
	}

	deleted, err := s.repo.DeleteByIDAndUser(ctx, mealPlanID, userID)
	if err != nil {
		return "", fmt.Errorf("献立の削除に失敗しました: %w", err)
	}
	if !deleted {
		return "", model.NewMealPlanNotFoundError()
	}
	return mealPlanID, nil
}

// ListForUser はユーザーの献立一覧をweek昇順で返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*model.MealPlan, error) {
	plans, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("献立一覧の取得に失敗しました: %w", err)
	}
	if plans == nil {
		plans = []*model.MealPlan{}
	}
	return plans, nil
}

// Get はユーザーが所有する献立を返す。
func (s *Service) Get(ctx context.Context, userID, mealPlanID string) (*model.MealPlan, error) {
	return s.findOwned(ctx, userID, mealPlanID)
}

// UpdateMeal は献立内の食事にパッチを浅くマージする。
// 指定されたフィールドのみ置き換え、他のフィールドは維持する。
func (s *Service) UpdateMeal(ctx context.Context, userID, mealPlanID, mealID string, patch model.MealPatch) (*model.MealPlan, error) {
	if err := validateID(mealPlanID); err != nil {
		return nil, err
	}

	plan, err := s.repo.ModifyMeals(ctx, mealPlanID, userID, func(plan *model.MealPlan) error {
		idx := plan.FindMeal(mealID)
		if idx < 0 {
			return model.NewMealNotInPlanError()
		}

		merged := plan.Meals[idx].Apply(patch)
		if err := s.validateMeal(merged); err != nil {
			return err
		}
		plan.Meals[idx] = merged
		plan.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, fmt.Errorf("献立の更新に失敗しました: %w", err)
	}
	return plan, nil
}

func (s *Service) findOwned(ctx context.Context, userID, mealPlanID string) (*model.MealPlan, error) {
	if err := validateID(mealPlanID); err != nil {
		return nil, err
	}

	plan, err := s.repo.FindByIDAndUser(ctx, mealPlanID, userID)
	if err != nil {
		return nil, fmt.Errorf("献立の取得に失敗しました: %w", err)
	}
	if plan == nil {
		return nil, model.NewMealPlanNotFoundError()
	}
	return plan, nil
}

// newMeal は入力値を検証し、献立内IDを採番した食事を返す。
func (s *Service) newMeal(input MealInput) (model.Meal, error) {
	diets := input.Diets
	if diets == nil {
		diets = []string{}
	}
	meal := model.Meal{
		ID:       s.newID(),
		RecipeID: input.RecipeID,
		Title:    strings.TrimSpace(input.Title),
		Diets:    diets,
		Image:    strings.TrimSpace(input.Image),
	}
	if err := s.validateMeal(meal); err != nil {
		return model.Meal{}, err
	}
	return meal, nil
}

func (s *Service) validateMeal(meal model.Meal) error {
	if meal.RecipeID <= 0 {
		return model.NewInvalidArgumentError("Meal recipe ID must be a positive integer")
	}
	if meal.Title == "" {
		return model.NewInvalidArgumentError("Meal title is required")
	}
	if meal.Image == "" {
		return model.NewInvalidArgumentError("Meal image is required")
	}
	if s.images != nil {
		if err := s.images.ValidateURL(meal.Image); err != nil {
			return model.NewInvalidArgumentError("Meal image must be a public http(s) URL")
		}
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewInvalidIDError("meal plan")
	}
	return nil
}
