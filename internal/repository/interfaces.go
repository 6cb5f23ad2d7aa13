// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/mealplan/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername は正規化済みユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。
	// ユーザー名が既に存在する場合はCONFLICTのAPIErrorを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePreferences は食事制限タグを更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	UpdatePreferences(ctx context.Context, id string, preferences []string) (*model.User, error)

	// DeleteWithMealPlans はユーザーと所有する全献立を同一トランザクションで削除する。
	// ユーザーが存在しない場合はfalseを返す。
	DeleteWithMealPlans(ctx context.Context, id string) (bool, error)
}

// MealPlanRepository は献立データの永続化インターフェース。
// すべての検索・更新は所有ユーザーIDで絞り込む。
type MealPlanRepository interface {
	// Create は献立を作成する。
	Create(ctx context.Context, plan *model.MealPlan) error

	// FindByIDAndUser はユーザーが所有する献立を取得する。見つからない場合はnilを返す。
	FindByIDAndUser(ctx context.Context, id, userID string) (*model.MealPlan, error)

	// ListByUserID はユーザーの献立一覧をweek昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.MealPlan, error)

	// AppendMeal は食事を1件、1回の条件付きUPDATEで末尾に追加し、更新後の献立を返す。
	// 上限に達している場合はCAPACITY_EXCEEDED、対象が存在しない場合はNOT_FOUNDのAPIErrorを返す。
	AppendMeal(ctx context.Context, id, userID string, meal model.Meal, updatedAt time.Time) (*model.MealPlan, error)

	// ModifyMeals は献立を行ロックした状態でmutateを適用し、同じトランザクションで保存する。
	// mutateがエラーを返した場合は何も保存せずそのエラーを返す。
	// 対象が存在しない場合はNOT_FOUNDのAPIErrorを返す。
	ModifyMeals(ctx context.Context, id, userID string, mutate func(plan *model.MealPlan) error) (*model.MealPlan, error)

	// DeleteByIDAndUser はユーザーが所有する献立を削除する。
	// 削除対象が存在しない場合はfalseを返す。
	DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error)
}
