package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
	"github.com/Maxlinn/LangPipe/internal/infra/configstore"
)

// ConfigInitAction は新しいクライアント設定ファイルを作成するコマンドのアクション
// APIキーとモデルはフラグ、未指定なら環境設定から取得する
func ConfigInitAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}

	if !cmd.Bool("force") {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s は既に存在します (上書きする場合は --force を指定)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("設定ファイルの確認に失敗: %w", err)
		}
	}

	clientCfg := completion.DefaultConfig()
	clientCfg.Model = cfg.OpenAI.Model
	clientCfg.APIKey = cfg.OpenAI.APIKey
	if model := cmd.String("model"); model != "" {
		clientCfg.Model = model
	}
	if key := cmd.String("api-key"); key != "" {
		clientCfg.APIKey = key
	}
	if clientCfg.APIKey == "" {
		return fmt.Errorf("APIキーが指定されていません (--api-key または OPENAI_API_KEY)")
	}

	if err := configstore.Save(path, clientCfg); err != nil {
		return fmt.Errorf("設定ファイルの保存に失敗: %w", err)
	}

	fmt.Fprintf(writer(cmd), "設定ファイルを作成しました: %s (%s)\n", path, clientCfg)
	return nil
}
