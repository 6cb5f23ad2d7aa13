// Package recipe は外部レシピAPI（Spoonacular）との連携を提供する。
// レシピ検索と詳細取得を行い、上流のエラーを内部のエラー種別に変換する。
package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/mealplan/internal/metrics"
	"github.com/hitoshi/mealplan/internal/model"
	"github.com/hitoshi/mealplan/internal/security"
	"github.com/tidwall/gjson"
)

const (
	// DefaultBaseURL はSpoonacular APIのベースURL。
	DefaultBaseURL = "https://api.spoonacular.com"
	// DefaultTimeout は1回の呼び出しに許す時間。リトライはしない。
	DefaultTimeout = 8 * time.Second
	// DefaultPageSize は検索1回あたりの取得件数。
	DefaultPageSize = 10

	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 5 * 1024 * 1024

	endpointSearch  = "search"
	endpointDetails = "details"
)

// Config はClientの設定。ゼロ値のフィールドには既定値を使う。
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	PageSize int
}

// Client は外部レシピAPIのクライアント。
// 全リクエストで同一のhttp.Clientを再利用する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	sanitizer  security.HTMLSanitizer
	metrics    metrics.MetricsCollector

	baseURL  string
	apiKey   string
	timeout  time.Duration
	pageSize int
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	cfg Config,
	sanitizer security.HTMLSanitizer,
	collector metrics.MetricsCollector,
) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if sanitizer == nil {
		sanitizer = security.NewRecipeSanitizer()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		sanitizer:  sanitizer,
		metrics:    collector,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		timeout:    cfg.Timeout,
		pageSize:   cfg.PageSize,
	}
}

// upstreamRecipe はSpoonacularのレシピ表現のうち利用するフィールド。
type upstreamRecipe struct {
	ID                  int                  `json:"id"`
	Title               string               `json:"title"`
	Diets               []string             `json:"diets"`
	Image               string               `json:"image"`
	ReadyInMinutes      int                  `json:"readyInMinutes"`
	Servings            int                  `json:"servings"`
	SourceURL           string               `json:"sourceUrl"`
	Summary             string               `json:"summary"`
	HealthScore         float64              `json:"healthScore"`
	ExtendedIngredients []upstreamIngredient `json:"extendedIngredients"`
	Instructions        string               `json:"instructions"`
	Cuisines            []string             `json:"cuisines"`
	DishTypes           []string             `json:"dishTypes"`
}

type upstreamIngredient struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Original string  `json:"original"`
}

type upstreamSearchResponse struct {
	Results      []upstreamRecipe `json:"results"`
	Offset       int              `json:"offset"`
	TotalResults int              `json:"totalResults"`
}

// Search はクエリと食事制限でレシピを検索する。
// クエリが空の場合は外部APIを呼ばずにINVALID_ARGUMENTを返す。
func (c *Client) Search(ctx context.Context, query string, diets []string) (*model.RecipeSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewInvalidArgumentError("Meal query parameter is required")
	}

	params := url.Values{}
	params.Set("query", query)
	if len(diets) > 0 {
		params.Set("diet", strings.Join(diets, ","))
	}
	params.Set("number", strconv.Itoa(c.pageSize))
	params.Set("addRecipeInformation", "true")
	params.Set("fillIngredients", "true")

	body, err := c.get(ctx, endpointSearch, "/recipes/complexSearch", params, false)
	if err != nil {
		return nil, err
	}

	var resp upstreamSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Error("レシピ検索レスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, c.malformedResponse(endpointSearch)
	}

	results := make([]model.RecipeSummary, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = c.toSummary(r)
	}

	return &model.RecipeSearchResult{
		Results: results,
		Total:   resp.TotalResults,
		Offset:  resp.Offset,
	}, nil
}

// GetDetails はレシピIDの詳細を取得する。
// 上流が404を返した場合はNOT_FOUNDを返す。
func (c *Client) GetDetails(ctx context.Context, recipeID int) (*model.RecipeDetails, error) {
	if recipeID <= 0 {
		return nil, model.NewInvalidArgumentError("Meal ID must be a positive integer")
	}

	path := fmt.Sprintf("/recipes/%d/information", recipeID)
	body, err := c.get(ctx, endpointDetails, path, url.Values{}, true)
	if err != nil {
		return nil, err
	}

	var r upstreamRecipe
	if err := json.Unmarshal(body, &r); err != nil {
		c.logger.Error("レシピ詳細レスポンスのパースに失敗しました",
			slog.Int("recipe_id", recipeID),
			slog.String("error", err.Error()),
		)
		return nil, c.malformedResponse(endpointDetails)
	}

	ingredients := make([]model.Ingredient, len(r.ExtendedIngredients))
	for i, ing := range r.ExtendedIngredients {
		ingredients[i] = model.Ingredient{
			ID:       ing.ID,
			Name:     ing.Name,
			Amount:   ing.Amount,
			Unit:     ing.Unit,
			Original: ing.Original,
		}
	}

	return &model.RecipeDetails{
		RecipeSummary: c.toSummary(r),
		Ingredients:   ingredients,
		Instructions:  c.sanitizer.Sanitize(r.Instructions),
		Cuisines:      nonNil(r.Cuisines),
		DishTypes:     nonNil(r.DishTypes),
	}, nil
}

// malformedResponse は2xxでもボディを解釈できない応答を502のUPSTREAM_ERRORとして扱う。
func (c *Client) malformedResponse(endpoint string) error {
	c.metrics.RecordUpstreamFailure(endpoint, model.ErrCodeUpstreamError)
	return model.NewUpstreamError(http.StatusBadGateway, "")
}

// get は上流APIにGETリクエストを送り、2xxのボディを返す。
// 2xx以外のステータスと通信失敗はAPIErrorに変換する。
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, notFoundAsMissing bool) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// ログにはapiKeyを含むURLではなくpathのみを記録する
	params.Set("apiKey", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mealplan/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("外部レシピAPIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("path", path),
			slog.String("error", redact(err.Error(), c.apiKey)),
		)
		c.metrics.RecordUpstreamFailure(endpoint, model.ErrCodeUpstreamTimeout)
		return nil, model.NewUpstreamTimeoutError()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	c.metrics.RecordUpstreamResponse(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", redact(err.Error(), c.apiKey)),
		)
		c.metrics.RecordUpstreamFailure(endpoint, model.ErrCodeUpstreamTimeout)
		return nil, model.NewUpstreamTimeoutError()
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	apiErr := mapStatus(resp.StatusCode, body, notFoundAsMissing)
	c.logger.Warn("外部レシピAPIがエラーステータスを返しました",
		slog.String("endpoint", endpoint),
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.String("code", apiErr.Code),
	)
	c.metrics.RecordUpstreamFailure(endpoint, apiErr.Code)
	return nil, apiErr
}

// mapStatus は上流のエラーステータスを内部のエラー種別に変換する。
func mapStatus(status int, body []byte, notFoundAsMissing bool) *model.APIError {
	switch {
	case status == http.StatusNotFound && notFoundAsMissing:
		return model.NewRecipeNotFoundError()
	case status == http.StatusUnauthorized:
		return model.NewInvalidAPIKeyError()
	case status == http.StatusPaymentRequired:
		return model.NewQuotaExceededError()
	case status == http.StatusTooManyRequests:
		return model.NewRateLimitedError()
	case status >= 400 && status <= 599:
		return model.NewUpstreamError(status, gjson.GetBytes(body, "message").String())
	default:
		// 1xx/3xxは想定外の応答として502扱いにする
		return model.NewUpstreamError(http.StatusBadGateway, "")
	}
}

func (c *Client) toSummary(r upstreamRecipe) model.RecipeSummary {
	return model.RecipeSummary{
		MealID:         r.ID,
		Name:           r.Title,
		Diets:          nonNil(r.Diets),
		Image:          r.Image,
		ReadyInMinutes: r.ReadyInMinutes,
		Servings:       r.Servings,
		SourceURL:      r.SourceURL,
		Summary:        c.sanitizer.Sanitize(r.Summary),
		HealthScore:    r.HealthScore,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// redact はエラーメッセージに含まれるAPIキーを伏せる。
// net/httpのエラーにはリクエストURLが含まれるため必要。
func redact(msg, secret string) string {
	if secret == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(secret), "REDACTED")
	return strings.ReplaceAll(msg, secret, "REDACTED")
}
