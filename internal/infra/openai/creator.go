package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

const (
	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set")
)

// Creator は OpenAI Chat Completions API を呼び出す completion.Creator 実装
//
// SDK 側の自動リトライは無効にしている。再試行は completion.Client.GenerateRetry が担う。
type Creator struct {
	client  openai.Client
	timeout time.Duration
}

type creatorOptions struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// CreatorOption は Creator 構築時のオプション
type CreatorOption func(*creatorOptions)

// WithBaseURL はAPIのベースURLを差し替える (互換サーバやテスト用)
func WithBaseURL(baseURL string) CreatorOption {
	return func(o *creatorOptions) {
		o.baseURL = baseURL
	}
}

// WithTimeout はAPIコールのタイムアウトを設定する
func WithTimeout(timeout time.Duration) CreatorOption {
	return func(o *creatorOptions) {
		o.timeout = timeout
	}
}

// WithHTTPClient はHTTPクライアントを差し替える
func WithHTTPClient(client *http.Client) CreatorOption {
	return func(o *creatorOptions) {
		o.httpClient = client
	}
}

// NewCreator はAPIキーを指定して Creator を作成する
func NewCreator(apiKey string, opts ...CreatorOption) (*Creator, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	o := creatorOptions{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &Creator{
		client:  openai.NewClient(reqOpts...),
		timeout: o.timeout,
	}, nil
}

// Create はメッセージ列を送信し、レスポンスをドメインの型に変換する
func (c *Creator) Create(ctx context.Context, req completion.Request) (*completion.Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: toMessageParams(req.Messages),
	}

	result, err := c.client.Chat.Completions.New(ctx, params, extraOptions(req.Options)...)
	if err != nil {
		return nil, classifyError(err)
	}

	return toResponse(result), nil
}

func toMessageParams(messages []completion.Message) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case completion.RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case completion.RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}

// extraOptions は追加パラメータを検証せずにリクエストボディへ設定する
// キー順に並べてリクエストを決定的にする
func extraOptions(options map[string]any) []option.RequestOption {
	if len(options) == 0 {
		return nil
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]option.RequestOption, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, option.WithJSONSet(k, options[k]))
	}
	return opts
}

func toResponse(result *openai.ChatCompletion) *completion.Response {
	resp := &completion.Response{
		ID:    result.ID,
		Model: string(result.Model),
		Usage: completion.Usage{
			CompletionTokens: result.Usage.CompletionTokens,
			PromptTokens:     result.Usage.PromptTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
		Choices: make([]completion.Choice, 0, len(result.Choices)),
	}

	for _, choice := range result.Choices {
		resp.Choices = append(resp.Choices, completion.Choice{
			Index:        int(choice.Index),
			FinishReason: completion.FinishReason(choice.FinishReason),
			Content:      choice.Message.Content,
		})
	}
	return resp
}

// classifyError はエラーに種別を付与する。メッセージは元のまま保持する
func classifyError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind := completion.KindExternal
		// ステータスコード429はレート制限エラー
		if apiErr.StatusCode == http.StatusTooManyRequests {
			kind = completion.KindRateLimited
		}
		return &completion.APIError{Kind: kind, StatusCode: apiErr.StatusCode, Err: err}
	}

	return &completion.APIError{Kind: completion.KindExternal, Err: err}
}

// String はデバッグ用の文字列表現を返す
func (c *Creator) String() string {
	return fmt.Sprintf("openai.Creator(timeout=%s)", c.timeout)
}

// インターフェース実装の確認
var _ completion.Creator = (*Creator)(nil)
