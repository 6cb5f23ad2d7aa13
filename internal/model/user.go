// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Preference は食事制限タグを表す。
type Preference string

// 許可された食事制限タグ
const (
	PreferenceKetogenic  Preference = "ketogenic"
	PreferenceVegetarian Preference = "vegetarian"
	PreferenceGlutenFree Preference = "gluten-free"
)

// AllowedPreferences は許可された食事制限タグの一覧。
var AllowedPreferences = []Preference{
	PreferenceKetogenic,
	PreferenceVegetarian,
	PreferenceGlutenFree,
}

// IsValid はタグが許可リストに含まれるかを返す。
func (p Preference) IsValid() bool {
	for _, allowed := range AllowedPreferences {
		if p == allowed {
			return true
		}
	}
	return false
}

// ValidatePreferences は全てのタグが許可リストに含まれることを検証する。
func ValidatePreferences(prefs []string) error {
	for _, p := range prefs {
		if !Preference(p).IsValid() {
			return NewInvalidPreferencesError()
		}
	}
	return nil
}

func allowedPreferenceList() string {
	names := make([]string, len(AllowedPreferences))
	for i, p := range AllowedPreferences {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// NormalizeUsername はユーザー名を比較・保存用に正規化する。
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// User はサービス利用ユーザーを表す。
// PasswordRecordは "hex(salt):hex(key)" 形式で、APIレスポンスには含めない。
type User struct {
	ID             string
	Username       string
	PasswordRecord string
	Preferences    []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
