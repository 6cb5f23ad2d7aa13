// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/mealplan/internal/credential"
	"github.com/hitoshi/mealplan/internal/model"
	"github.com/hitoshi/mealplan/internal/repository"
)

// TokenIssuer はログイン成功時にトークンを発行するインターフェース。
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service はユーザー管理のサービス層。
// 登録、ログイン、情報取得、食事制限の更新、退会のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	now      func() time.Time
	verify   func(password, record string) bool
}

// dummyPasswordRecord は存在しないユーザーのログイン時に照合する、形式上正しいレコード。
// 照合結果は常に不一致だが、実在ユーザーと同じscrypt計算を行わせる。
var dummyPasswordRecord = strings.Repeat("5a", 16) + ":" + strings.Repeat("c3", 64)

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, tokens TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		now:      time.Now,
		verify:   credential.Verify,
	}
}

// Register はユーザーを登録し、発行したトークンとともに返す。
// ユーザー名は小文字に正規化して保存する。
func (s *Service) Register(ctx context.Context, username, password string, preferences []string) (*model.User, string, error) {
	username = model.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, "", model.NewInvalidArgumentError("Username and password are required")
	}
	if preferences == nil {
		preferences = []string{}
	}
	if err := model.ValidatePreferences(preferences); err != nil {
		return nil, "", err
	}

	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewUsernameTakenError()
	}

	record, err := credential.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:             uuid.NewString(),
		Username:       username,
		PasswordRecord: record,
		Preferences:    preferences,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// 同時登録による一意制約違反はリポジトリがCONFLICTとして返す
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)

	return user, token, nil
}

// Login はユーザー名とパスワードを検証し、トークンを発行する。
// ユーザーが存在しない場合とパスワード不一致は区別しない。
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	username = model.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, "", model.NewInvalidArgumentError("Username and password are required")
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		// 応答時間からユーザーの有無を推測されないよう、不一致が確定していても照合する
		s.verify(password, dummyPasswordRecord)
		return nil, "", model.NewInvalidCredentialsError()
	}
	if !s.verify(password, user.PasswordRecord) {
		return nil, "", model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	return user, token, nil
}

// Get は本人のユーザー情報を返す。
func (s *Service) Get(ctx context.Context, requesterID, targetID string) (*model.User, error) {
	if err := checkOwner(requesterID, targetID, "access"); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdatePreferences は本人の食事制限タグを置き換える。
// preferencesがnilの場合は配列が指定されなかったものとして扱う。
func (s *Service) UpdatePreferences(ctx context.Context, requesterID, targetID string, preferences []string) (*model.User, error) {
	if err := checkOwner(requesterID, targetID, "update"); err != nil {
		return nil, err
	}
	if preferences == nil {
		return nil, model.NewInvalidPreferencesError()
	}
	if err := model.ValidatePreferences(preferences); err != nil {
		return nil, err
	}

	user, err := s.userRepo.UpdatePreferences(ctx, targetID, preferences)
	if err != nil {
		return nil, fmt.Errorf("食事制限の更新に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Delete は本人のユーザーと所有する全献立を削除する。
func (s *Service) Delete(ctx context.Context, requesterID, targetID string) error {
	if err := checkOwner(requesterID, targetID, "delete"); err != nil {
		return err
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", targetID),
	)

	deleted, err := s.userRepo.DeleteWithMealPlans(ctx, targetID)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", targetID),
	)
	return nil
}

// Preferences はユーザーの食事制限タグを返す。レシピ検索のdietフィルタに使う。
func (s *Service) Preferences(ctx context.Context, userID string) ([]string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user.Preferences, nil
}

// Exists はユーザーが存在するかを返す。認証ミドルウェアが退会済みトークンを弾くために使う。
func (s *Service) Exists(ctx context.Context, userID string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user != nil, nil
}

func checkOwner(requesterID, targetID, action string) error {
	if requesterID == "" || requesterID != targetID {
		return model.NewForbiddenError(fmt.Sprintf("You can only %s your own account", action))
	}
	return nil
}
