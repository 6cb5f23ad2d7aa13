// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード（機械可読な種別）
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, mealplan, recipe, system
	Action   string // ユーザー向け対処方法
	Status   int    // 上流APIのステータス（ErrCodeUpstreamErrorのみ使用）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	ErrCodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	ErrCodeQuotaExceeded       = "QUOTA_EXCEEDED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
	ErrCodeInternalConfigError = "INTERNAL_CONFIG_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidArgumentError は入力不正エラーを生成する。
func NewInvalidArgumentError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  message,
		Category: "validation",
		Action:   "Check the request parameters and try again.",
	}
}

// NewInvalidIDError はID形式が不正な場合のエラーを生成する。
func NewInvalidIDError(kind string) *APIError {
	return NewInvalidArgumentError(fmt.Sprintf("Invalid %s ID format", kind))
}

// NewUnauthorizedError は認証失敗エラーを生成する。
// トークン検証失敗の理由は区別せず、常に同じメッセージを返す。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Please authenticate",
		Category: "auth",
		Action:   "Log in again to obtain a new token.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Username or password is incorrect.",
	}
}

// NewForbiddenError は他ユーザーのリソースへのアクセスを拒否するエラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "You can only access your own account.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "The requested user does not exist.",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "Username already exists",
		Category: "validation",
		Action:   "Please choose a different username.",
	}
}

// NewInvalidPreferencesError は食事制限タグが許可リスト外の場合のエラーを生成する。
func NewInvalidPreferencesError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  "Invalid preferences",
		Category: "validation",
		Action:   fmt.Sprintf("Preferences must be an array containing any of: %s", allowedPreferenceList()),
	}
}

// NewMealPlanNotFoundError は献立が見つからない場合のエラーを生成する。
func NewMealPlanNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Meal plan not found",
		Category: "mealplan",
		Action:   "Check the meal plan ID.",
	}
}

// NewMealNotInPlanError は献立内に指定の食事が無い場合のエラーを生成する。
func NewMealNotInPlanError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Meal not found in plan",
		Category: "mealplan",
		Action:   "Check the meal ID.",
	}
}

// NewCapacityExceededError は献立の食事数上限エラーを生成する。
func NewCapacityExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeCapacityExceeded,
		Message:  fmt.Sprintf("Meal plan can only contain a maximum of %d meals", MaxMealsPerPlan),
		Category: "mealplan",
		Action:   "Remove a meal or create a plan for another week.",
	}
}

// NewRecipeNotFoundError は上流APIにレシピが存在しない場合のエラーを生成する。
func NewRecipeNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Meal not found",
		Category: "recipe",
		Action:   "The requested recipe ID does not exist.",
	}
}

// NewInvalidAPIKeyError は上流APIキーが無効な場合のエラーを生成する。
// キーの値はメッセージに含めない。
func NewInvalidAPIKeyError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalConfigError,
		Message:  "Invalid API key",
		Category: "system",
		Action:   "Please check your API key configuration.",
	}
}

// NewQuotaExceededError は上流APIの利用枠超過エラーを生成する。
func NewQuotaExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeQuotaExceeded,
		Message:  "API quota exceeded",
		Category: "recipe",
		Action:   "Please try again later.",
	}
}

// NewRateLimitedError は上流APIのレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests",
		Category: "recipe",
		Action:   "Please try again in a few minutes.",
	}
}

// NewUpstreamError は上流APIのその他のエラーを生成する。
// statusは呼び出し元へそのまま返すステータスコード。
func NewUpstreamError(status int, message string) *APIError {
	if message == "" {
		message = "Unexpected error occurred"
	}
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  message,
		Category: "recipe",
		Action:   "External API error. Please try again later.",
		Status:   status,
	}
}

// NewUpstreamTimeoutError は上流APIが応答しない場合のエラーを生成する。
func NewUpstreamTimeoutError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamTimeout,
		Message:  "External API timeout",
		Category: "recipe",
		Action:   "The recipe service is not responding. Please try again.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An unexpected error occurred",
		Category: "system",
		Action:   "Please try again later.",
	}
}
