package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/mealplan/internal/model"
)

// PostgresMealPlanRepo はPostgreSQLを使用した献立リポジトリ。
// 食事リストはmealsカラムにJSONB配列として保存する。
type PostgresMealPlanRepo struct {
	db *sql.DB
}

// NewPostgresMealPlanRepo はPostgresMealPlanRepoを生成する。
func NewPostgresMealPlanRepo(db *sql.DB) *PostgresMealPlanRepo {
	return &PostgresMealPlanRepo{db: db}
}

const mealPlanColumns = `id, user_id, week, meals, created_at, updated_at`

// Create は献立を作成する。
func (r *PostgresMealPlanRepo) Create(ctx context.Context, plan *model.MealPlan) error {
	meals, err := encodeMeals(plan.Meals)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO mealplans (id, user_id, week, meals, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		plan.ID, plan.UserID, plan.Week, meals, plan.CreatedAt, plan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert meal plan: %w", err)
	}
	return nil
}

// FindByIDAndUser はユーザーが所有する献立を取得する。見つからない場合はnilを返す。
func (r *PostgresMealPlanRepo) FindByIDAndUser(ctx context.Context, id, userID string) (*model.MealPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mealPlanColumns+` FROM mealplans WHERE id = $1 AND user_id = $2`,
		id, userID,
	)

	plan, err := scanMealPlan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find meal plan: %w", err)
	}
	return plan, nil
}

// ListByUserID はユーザーの献立一覧をweek昇順で返す。
func (r *PostgresMealPlanRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MealPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mealPlanColumns+` FROM mealplans
		 WHERE user_id = $1
		 ORDER BY week ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans: %w", err)
	}
	defer rows.Close()

	plans := []*model.MealPlan{}
	for rows.Next() {
		plan, err := scanMealPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meal plan: %w", err)
		}
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meal plans: %w", err)
	}
	return plans, nil
}

// AppendMeal は食事を1件、1回の条件付きUPDATEで末尾に追加する。
// 件数の確認と追加を同じ文で行うため、同時に追加されても食事が失われず上限も超えない。
func (r *PostgresMealPlanRepo) AppendMeal(ctx context.Context, id, userID string, meal model.Meal, updatedAt time.Time) (*model.MealPlan, error) {
	appended, err := encodeMeals([]model.Meal{meal})
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`UPDATE mealplans SET meals = meals || $3::jsonb, updated_at = $4
		 WHERE id = $1 AND user_id = $2 AND jsonb_array_length(meals) < $5
		 RETURNING `+mealPlanColumns,
		id, userID, appended, updatedAt, model.MaxMealsPerPlan,
	)
	plan, err := scanMealPlan(row)
	if err == nil {
		return plan, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to append meal: %w", err)
	}

	// 更新0件の理由が上限到達か献立の不在かを判別する
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM mealplans WHERE id = $1 AND user_id = $2)`,
		id, userID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check meal plan: %w", err)
	}
	if exists {
		return nil, model.NewCapacityExceededError()
	}
	return nil, model.NewMealPlanNotFoundError()
}

// ModifyMeals は SELECT ... FOR UPDATE で献立を行ロックしてからmutateを適用し、食事リストを保存する。
func (r *PostgresMealPlanRepo) ModifyMeals(ctx context.Context, id, userID string, mutate func(plan *model.MealPlan) error) (*model.MealPlan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	plan, err := scanMealPlan(tx.QueryRowContext(ctx,
		`SELECT `+mealPlanColumns+` FROM mealplans WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, model.NewMealPlanNotFoundError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock meal plan: %w", err)
	}

	if err := mutate(plan); err != nil {
		return nil, err
	}

	meals, err := encodeMeals(plan.Meals)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE mealplans SET meals = $3, updated_at = $4 WHERE id = $1 AND user_id = $2`,
		plan.ID, plan.UserID, meals, plan.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to update meal plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return plan, nil
}

// DeleteByIDAndUser はユーザーが所有する献立を削除する。
func (r *PostgresMealPlanRepo) DeleteByIDAndUser(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM mealplans WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete meal plan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMealPlan(s rowScanner) (*model.MealPlan, error) {
	plan := &model.MealPlan{}
	var meals []byte
	if err := s.Scan(&plan.ID, &plan.UserID, &plan.Week, &meals, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meals, &plan.Meals); err != nil {
		return nil, fmt.Errorf("failed to decode meals: %w", err)
	}
	if plan.Meals == nil {
		plan.Meals = []model.Meal{}
	}
	return plan, nil
}

func encodeMeals(meals []model.Meal) ([]byte, error) {
	if meals == nil {
		meals = []model.Meal{}
	}
	b, err := json.Marshal(meals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode meals: %w", err)
	}
	return b, nil
}

// compile-time interface check
var _ MealPlanRepository = (*PostgresMealPlanRepo)(nil)
