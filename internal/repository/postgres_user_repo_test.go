package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hitoshi/mealplan/internal/model"
	"github.com/lib/pq"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var userRowColumns = []string{"id", "username", "password_record", "preferences", "created_at", "updated_at"}

func TestPostgresUserRepo_FindByID_Found(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "alice", "aa:bb", "{vegetarian,gluten-free}", now, now))

	user, err := repo.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}
	if user.Username != "alice" || user.PasswordRecord != "aa:bb" {
		t.Errorf("unexpected user: %+v", user)
	}
	if len(user.Preferences) != 2 || user.Preferences[0] != "vegetarian" || user.Preferences[1] != "gluten-free" {
		t.Errorf("Preferences = %v", user.Preferences)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresUserRepo_FindByUsername_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	user, err := repo.FindByUsername(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("FindByUsername error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

// 空の配列カラムは空スライスとして返すこと
func TestPostgresUserRepo_FindByID_EmptyPreferences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "alice", "aa:bb", "{}", now, now))

	user, err := repo.FindByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("FindByID error: %v", err)
	}
	if user.Preferences == nil || len(user.Preferences) != 0 {
		t.Errorf("Preferences = %#v, want empty slice", user.Preferences)
	}
}

func TestPostgresUserRepo_Create_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("user-1", "alice", "aa:bb", sqlmock.AnyArg(), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &model.User{
		ID:             "user-1",
		Username:       "alice",
		PasswordRecord: "aa:bb",
		Preferences:    []string{"ketogenic"},
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 一意制約違反はCONFLICTとして返すこと
func TestPostgresUserRepo_Create_DuplicateUsername(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &model.User{ID: "user-1", Username: "alice"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeConflict {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeConflict)
	}
}

func TestPostgresUserRepo_Create_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &model.User{ID: "user-1", Username: "alice"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("expected raw error, got APIError %v", apiErr)
	}
}

func TestPostgresUserRepo_UpdatePreferences(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Now()

	mock.ExpectQuery(`UPDATE users SET preferences = \$2, updated_at = now\(\)\s+WHERE id = \$1\s+RETURNING`).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("user-1", "alice", "aa:bb", "{ketogenic}", now, now))

	user, err := repo.UpdatePreferences(context.Background(), "user-1", []string{"ketogenic"})
	if err != nil {
		t.Fatalf("UpdatePreferences error: %v", err)
	}
	if len(user.Preferences) != 1 || user.Preferences[0] != "ketogenic" {
		t.Errorf("Preferences = %v", user.Preferences)
	}
}

func TestPostgresUserRepo_UpdatePreferences_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectQuery(`UPDATE users SET preferences`).
		WillReturnError(sql.ErrNoRows)

	user, err := repo.UpdatePreferences(context.Background(), "missing", []string{})
	if err != nil {
		t.Fatalf("UpdatePreferences error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil, got %+v", user)
	}
}

func TestPostgresUserRepo_DeleteWithMealPlans_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM mealplans WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.DeleteWithMealPlans(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DeleteWithMealPlans error: %v", err)
	}
	if !deleted {
		t.Error("expected deleted = true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ユーザーが存在しない場合はロールバックしてfalseを返すこと
func TestPostgresUserRepo_DeleteWithMealPlans_UserMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM mealplans`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM users`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	deleted, err := repo.DeleteWithMealPlans(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DeleteWithMealPlans error: %v", err)
	}
	if deleted {
		t.Error("expected deleted = false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// 献立削除に失敗した場合はユーザーを削除せずロールバックすること
func TestPostgresUserRepo_DeleteWithMealPlans_MealPlanDeleteFails(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM mealplans`).
		WithArgs("user-1").
		WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	if _, err := repo.DeleteWithMealPlans(context.Background(), "user-1"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
