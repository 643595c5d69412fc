package configstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

// APIキーを含むためオーナーのみ読み書き可能にする
const fileMode = 0o600

// Format は設定ファイルの形式
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor は拡張子から形式を判定する。.yaml / .yml 以外は JSON とみなす
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Save は設定を path に書き出す。既存のファイルは丸ごと上書きする
func Save(path string, cfg completion.Config) error {
	data, err := Marshal(cfg, FormatFor(path))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load は path から設定を読み込む
func Load(path string) (completion.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return completion.Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Unmarshal(data, FormatFor(path))
	if err != nil {
		return completion.Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Marshal は設定を指定形式でエンコードする
func Marshal(cfg completion.Config, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config as yaml: %w", err)
		}
		return data, nil
	default:
		data, err := json.MarshalIndent(cfg, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal config as json: %w", err)
		}
		return append(data, '\n'), nil
	}
}

// Unmarshal は指定形式のデータを設定にデコードする
// model が空の場合は既定のモデルを補う
func Unmarshal(data []byte, format Format) (completion.Config, error) {
	var cfg completion.Config

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return completion.Config{}, err
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return completion.Config{}, err
		}
	}

	if cfg.Model == "" {
		cfg.Model = completion.DefaultModel
	}
	return cfg, nil
}
