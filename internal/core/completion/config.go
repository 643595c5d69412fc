package completion

import "fmt"

// DefaultModel は既定のモデル名
const DefaultModel = "gpt-4o-mini"

// Config はクライアント1つ分のモデル設定と累積トークン数
// カウンタは成功した呼び出しごとに加算され、自動でリセットされない
type Config struct {
	Model            string `json:"model" yaml:"model"`
	APIKey           string `json:"api_key" yaml:"api_key"`
	CompletionTokens int64  `json:"completion_tokens" yaml:"completion_tokens"`
	PromptTokens     int64  `json:"prompt_tokens" yaml:"prompt_tokens"`
	TotalTokens      int64  `json:"total_tokens" yaml:"total_tokens"`
}

// DefaultConfig は既定の設定を返す
func DefaultConfig() Config {
	return Config{Model: DefaultModel}
}

// Usage は累積トークン数を Usage として返す
func (c Config) Usage() Usage {
	return Usage{
		CompletionTokens: c.CompletionTokens,
		PromptTokens:     c.PromptTokens,
		TotalTokens:      c.TotalTokens,
	}
}

func (c *Config) addUsage(u Usage) {
	c.CompletionTokens += u.CompletionTokens
	c.PromptTokens += u.PromptTokens
	c.TotalTokens += u.TotalTokens
}

// String はAPIキーを伏せた文字列表現を返す
func (c Config) String() string {
	return fmt.Sprintf("Config(model=%s, api_key=%s, completion_tokens=%d, prompt_tokens=%d, total_tokens=%d)",
		c.Model, MaskKey(c.APIKey), c.CompletionTokens, c.PromptTokens, c.TotalTokens)
}

// MaskKey はAPIキーの末尾4文字以外を伏せる
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
