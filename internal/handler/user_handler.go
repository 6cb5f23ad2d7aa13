package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealplan/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Register はユーザーを登録し、発行したトークンとともに返す。
	Register(ctx context.Context, username, password string, preferences []string) (*model.User, string, error)
	// Login は認証に成功したユーザーとトークンを返す。
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	// Get は本人のユーザー情報を返す。
	Get(ctx context.Context, requesterID, targetID string) (*model.User, error)
	// UpdatePreferences は本人の食事制限タグを置き換える。
	UpdatePreferences(ctx context.Context, requesterID, targetID string, preferences []string) (*model.User, error)
	// Delete は本人のユーザーと所有する全献立を削除する。
	Delete(ctx context.Context, requesterID, targetID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type registerRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Preferences []string `json:"preferences"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updatePreferencesRequest struct {
	Preferences []string `json:"preferences"`
}

// userResponse はパスワードを除いたユーザー情報のAPIレスポンス。
type userResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Preferences []string  `json:"preferences"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// loginUserResponse はログイン応答に含める最小限のユーザー情報。
type loginUserResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Preferences []string `json:"preferences"`
}

type userEnvelope struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
	Token   string       `json:"token"`
}

type loginResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    loginUserResponse `json:"user"`
}

type deleteUserResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Register はユーザー登録を処理する。
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Username, req.Password, req.Preferences)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User registered successfully",
		User:    toUserResponse(user),
		Token:   token,
	})
}

// Login はログインを処理する。
// POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   token,
		User: loginUserResponse{
			ID:          user.ID,
			Username:    user.Username,
			Preferences: nonNilStrings(user.Preferences),
		},
	})
}

// GetUser は本人のユーザー情報を返す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Get(r.Context(), requesterID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{
		Message: "User information retrieved successfully",
		User:    toUserResponse(user),
	})
}

// UpdatePreferences は食事制限タグを更新する。
// PUT /api/users/{id}
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updatePreferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdatePreferences(r.Context(), requesterID, chi.URLParam(r, "id"), req.Preferences)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userEnvelope{
		Message: "Preferences updated successfully",
		User:    toUserResponse(user),
	})
}

// DeleteUser は退会処理を実行する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	targetID := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), requesterID, targetID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteUserResponse{
		Message: "User deleted successfully",
		UserID:  targetID,
	})
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Preferences: nonNilStrings(user.Preferences),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
