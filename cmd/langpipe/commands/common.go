package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/Maxlinn/LangPipe/internal/platform/config"
	"github.com/Maxlinn/LangPipe/internal/platform/container"
	"github.com/Maxlinn/LangPipe/internal/platform/logger"
)

// containerOptions はコンテナ生成時に追加で渡すオプション (テストでコラボレータを差し替える)
var containerOptions []container.ContainerOption

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.Container
}

// NewAppContext は環境設定とクライアント設定ファイルを読み込み、AppContext を作成する
func NewAppContext(ctx context.Context, envFile, clientConfigPath string) (*AppContext, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return nil, err
	}

	opts := append([]container.ContainerOption{container.WithContainerLogger(slog.Default())}, containerOptions...)
	cont, err := container.NewClientFromFile(ctx, cfg, clientConfigPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
	}, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}

// loadConfig は環境設定を読み込み、ロガーを初期化する
func loadConfig(envFile string) (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

// writer はコマンドの出力先を返す
func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// reader はコマンドの入力元を返す
func reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

// envFlag は全コマンド共通の環境変数ファイルフラグ
func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

// configFlag はクライアント設定ファイルのフラグ
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "config",
		Usage:    "クライアント設定ファイルパス (.json / .yaml)",
		Required: true,
	}
}
