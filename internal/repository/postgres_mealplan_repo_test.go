package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/mealplan/internal/model"
)

var mealPlanRowColumns = []string{"id", "user_id", "week", "meals", "created_at", "updated_at"}

func TestPostgresMealPlanRepo_Create_EncodesMeals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()

	wantMeals := `[{"id":"m1","recipeId":716429,"title":"Pasta","diets":["vegetarian"],"image":"http://x/img.png"}]`
	mock.ExpectExec(`INSERT INTO mealplans`).
		WithArgs("plan-1", "user-1", 1, []byte(wantMeals), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.MealPlan{
		ID:     "plan-1",
		UserID: "user-1",
		Week:   1,
		Meals: []model.Meal{{
			ID: "m1", RecipeID: 716429, Title: "Pasta",
			Diets: []string{"vegetarian"}, Image: "http://x/img.png",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 食事リストがnilでも空配列として保存すること
func TestPostgresMealPlanRepo_Create_NilMeals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO mealplans`).
		WithArgs("plan-1", "user-1", 2, []byte(`[]`), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.MealPlan{
		ID: "plan-1", UserID: "user-1", Week: 2, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestPostgresMealPlanRepo_FindByIDAndUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM mealplans WHERE id = \$1 AND user_id = \$2`).
		WithArgs("plan-1", "user-1").
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns).
			AddRow("plan-1", "user-1", 3, []byte(`[{"id":"m1","recipeId":1,"title":"Soup","diets":[],"image":""}]`), now, now))

	plan, err := repo.FindByIDAndUser(context.Background(), "plan-1", "user-1")
	if err != nil {
		t.Fatalf("FindByIDAndUser error: %v", err)
	}
	if plan == nil {
		t.Fatal("expected plan, got nil")
	}
	if plan.Week != 3 || len(plan.Meals) != 1 || plan.Meals[0].Title != "Soup" {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

// 他ユーザーの献立は存在しないものとしてnilを返すこと
func TestPostgresMealPlanRepo_FindByIDAndUser_NotOwned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM mealplans WHERE id = \$1 AND user_id = \$2`).
		WithArgs("plan-1", "intruder").
		WillReturnError(sql.ErrNoRows)

	plan, err := repo.FindByIDAndUser(context.Background(), "plan-1", "intruder")
	if err != nil {
		t.Fatalf("FindByIDAndUser error: %v", err)
	}
	if plan != nil {
		t.Errorf("expected nil, got %+v", plan)
	}
}

func TestPostgresMealPlanRepo_ListByUserID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM mealplans\s+WHERE user_id = \$1\s+ORDER BY week ASC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns).
			AddRow("plan-1", "user-1", 1, []byte(`[]`), now, now).
			AddRow("plan-2", "user-1", 2, []byte(`[]`), now, now))

	plans, err := repo.ListByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUserID error: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("len(plans) = %d, want 2", len(plans))
	}
	if plans[0].Week != 1 || plans[1].Week != 2 {
		t.Errorf("unexpected order: %d, %d", plans[0].Week, plans[1].Week)
	}
	if plans[0].Meals == nil {
		t.Error("Meals should be empty slice, not nil")
	}
}

func TestPostgresMealPlanRepo_ListByUserID_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM mealplans`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns))

	plans, err := repo.ListByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUserID error: %v", err)
	}
	if plans == nil || len(plans) != 0 {
		t.Errorf("plans = %#v, want empty slice", plans)
	}
}

var appendedMeal = model.Meal{ID: "m2", RecipeID: 42, Title: "Soup", Diets: []string{}, Image: "http://x/img.png"}

const appendSQL = `UPDATE mealplans SET meals = meals \|\| \$3::jsonb, updated_at = \$4\s+` +
	`WHERE id = \$1 AND user_id = \$2 AND jsonb_array_length\(meals\) < \$5\s+RETURNING`

func TestPostgresMealPlanRepo_AppendMeal_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()

	mock.ExpectQuery(appendSQL).
		WithArgs("plan-1", "user-1",
			[]byte(`[{"id":"m2","recipeId":42,"title":"Soup","diets":[],"image":"http://x/img.png"}]`),
			now, model.MaxMealsPerPlan).
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns).
			AddRow("plan-1", "user-1", 1,
				[]byte(`[{"id":"m1","recipeId":1,"title":"Pasta","diets":[],"image":""},{"id":"m2","recipeId":42,"title":"Soup","diets":[],"image":"http://x/img.png"}]`),
				now, now))

	plan, err := repo.AppendMeal(context.Background(), "plan-1", "user-1", appendedMeal, now)
	if err != nil {
		t.Fatalf("AppendMeal error: %v", err)
	}
	if len(plan.Meals) != 2 || plan.Meals[1].ID != "m2" {
		t.Errorf("unexpected meals: %+v", plan.Meals)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 更新0件の場合は献立の有無で上限到達と不在を区別すること
func TestPostgresMealPlanRepo_AppendMeal_NoRowUpdated(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
		want   string
	}{
		{"plan is full", true, model.ErrCodeCapacityExceeded},
		{"plan missing or not owned", false, model.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPostgresMealPlanRepo(db)

			mock.ExpectQuery(appendSQL).
				WillReturnRows(sqlmock.NewRows(mealPlanRowColumns))
			mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM mealplans WHERE id = \$1 AND user_id = \$2\)`).
				WithArgs("plan-1", "user-1").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			plan, err := repo.AppendMeal(context.Background(), "plan-1", "user-1", appendedMeal, time.Now())
			if plan != nil {
				t.Errorf("expected nil plan, got %+v", plan)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *model.APIError, got %v", err)
			}
			if apiErr.Code != tt.want {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.want)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestPostgresMealPlanRepo_AppendMeal_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	dbErr := errors.New("connection reset")

	mock.ExpectQuery(appendSQL).WillReturnError(dbErr)

	_, err := repo.AppendMeal(context.Background(), "plan-1", "user-1", appendedMeal, time.Now())
	if !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
}

const lockSQL = `SELECT .+ FROM mealplans WHERE id = \$1 AND user_id = \$2 FOR UPDATE`

func TestPostgresMealPlanRepo_ModifyMeals_LocksAndSaves(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()
	later := now.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).
		WithArgs("plan-1", "user-1").
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns).
			AddRow("plan-1", "user-1", 1, []byte(`[{"id":"m1","recipeId":1,"title":"Soup","diets":[],"image":"i"}]`), now, now))
	mock.ExpectExec(`UPDATE mealplans SET meals = \$3, updated_at = \$4 WHERE id = \$1 AND user_id = \$2`).
		WithArgs("plan-1", "user-1", []byte(`[{"id":"m1","recipeId":1,"title":"Stew","diets":[],"image":"i"}]`), later).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	plan, err := repo.ModifyMeals(context.Background(), "plan-1", "user-1", func(p *model.MealPlan) error {
		p.Meals[0].Title = "Stew"
		p.UpdatedAt = later
		return nil
	})
	if err != nil {
		t.Fatalf("ModifyMeals error: %v", err)
	}
	if plan.Meals[0].Title != "Stew" {
		t.Errorf("Title = %q, want %q", plan.Meals[0].Title, "Stew")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// mutateがエラーを返した場合は保存せずロールバックすること
func TestPostgresMealPlanRepo_ModifyMeals_MutateErrorRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns).
			AddRow("plan-1", "user-1", 1, []byte(`[]`), now, now))
	mock.ExpectRollback()

	wantErr := model.NewMealNotInPlanError()
	_, err := repo.ModifyMeals(context.Background(), "plan-1", "user-1", func(p *model.MealPlan) error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresMealPlanRepo_ModifyMeals_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresMealPlanRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockSQL).
		WithArgs("plan-1", "intruder").
		WillReturnRows(sqlmock.NewRows(mealPlanRowColumns))
	mock.ExpectRollback()

	called := false
	_, err := repo.ModifyMeals(context.Background(), "plan-1", "intruder", func(p *model.MealPlan) error {
		called = true
		return nil
	})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNotFound {
		t.Fatalf("err = %v, want NOT_FOUND", err)
	}
	if called {
		t.Error("mutate must not be called for a missing plan")
	}
}

func TestPostgresMealPlanRepo_DeleteByIDAndUser(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"deleted", 1, true},
		{"not found", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPostgresMealPlanRepo(db)

			mock.ExpectExec(`DELETE FROM mealplans WHERE id = \$1 AND user_id = \$2`).
				WithArgs("plan-1", "user-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.DeleteByIDAndUser(context.Background(), "plan-1", "user-1")
			if err != nil {
				t.Fatalf("DeleteByIDAndUser error: %v", err)
			}
			if got != tt.want {
				t.Errorf("deleted = %v, want %v", got, tt.want)
			}
		})
	}
}
