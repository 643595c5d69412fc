package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
	"github.com/Maxlinn/LangPipe/internal/infra/configstore"
	"github.com/Maxlinn/LangPipe/internal/infra/errorlog"
	"github.com/Maxlinn/LangPipe/internal/infra/openai"
	"github.com/Maxlinn/LangPipe/internal/infra/pricing"
	"github.com/Maxlinn/LangPipe/internal/infra/tokenizer"
	"github.com/Maxlinn/LangPipe/internal/platform/config"
	"github.com/Maxlinn/LangPipe/internal/platform/database"
	"github.com/Maxlinn/LangPipe/internal/platform/metrics"
)

// Container は補完クライアントとその記録先の依存関係を保持する。
type Container struct {
	Client   *completion.Client
	Metrics  *metrics.Collector
	Throttle *completion.ThrottledCreator // 流量制御が無効な場合は nil
	Ledger   *database.UsageLedger        // DatabaseURL 未設定の場合は nil
	Costs    *pricing.Tracker             // PricingFile 未設定の場合は nil

	configPath string
	keyFromEnv bool // APIキーを環境変数から補った場合は Save でファイルへ書き出さない
	logger     *slog.Logger
	database   *database.Database
	errorLog   *errorlog.Recorder
}

type containerOptions struct {
	logger       *slog.Logger
	creator      completion.Creator
	tokenCounter completion.TokenCounter
	clientOpts   []completion.Option
}

// ContainerOption は Container 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerCreator は OpenAI の代わりに使うコラボレータを注入する
func WithContainerCreator(creator completion.Creator) ContainerOption {
	return func(opts *containerOptions) {
		opts.creator = creator
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter completion.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// WithContainerClientOptions は Client にそのまま渡すオプションを追加する
func WithContainerClientOptions(clientOpts ...completion.Option) ContainerOption {
	return func(opts *containerOptions) {
		opts.clientOpts = append(opts.clientOpts, clientOpts...)
	}
}

// NewClientFromFile は保存済みの設定ファイルを読み込み、クライアントを組み立てる。
// ファイルに API キーがなければ環境設定のキーを使う。
func NewClientFromFile(ctx context.Context, cfg *config.Config, path string, opts ...ContainerOption) (*Container, error) {
	clientCfg, err := configstore.Load(path)
	if err != nil {
		return nil, err
	}

	c, err := New(ctx, cfg, clientCfg, opts...)
	if err != nil {
		return nil, err
	}
	c.configPath = path
	return c, nil
}

// New は設定からコンテナを生成する。
func New(ctx context.Context, cfg *config.Config, clientCfg completion.Config, opts ...ContainerOption) (*Container, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &Container{logger: options.logger}

	if clientCfg.APIKey == "" && cfg.OpenAI.APIKey != "" {
		clientCfg.APIKey = cfg.OpenAI.APIKey
		c.keyFromEnv = true
	}

	// Creator (OpenAI)
	creator := options.creator
	if creator == nil {
		var creatorOpts []openai.CreatorOption
		if cfg.OpenAI.Timeout > 0 {
			creatorOpts = append(creatorOpts, openai.WithTimeout(cfg.OpenAI.Timeout))
		}
		if cfg.OpenAI.BaseURL != "" {
			creatorOpts = append(creatorOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		openaiCreator, err := openai.NewCreator(clientCfg.APIKey, creatorOpts...)
		if err != nil {
			return nil, fmt.Errorf("OpenAIクライアント初期化に失敗しました: %w", err)
		}
		creator = openaiCreator
	}

	// 流量制御
	if cfg.Throttle.Enabled() {
		c.Throttle = completion.NewThrottledCreator(creator, cfg.Throttle.RequestsPerMinute, cfg.Throttle.MaxConcurrency)
		creator = c.Throttle
	}

	// TokenCounter (tiktoken)
	tokenCounter := options.tokenCounter
	if tokenCounter == nil {
		counter, err := tokenizer.NewCounter(tokenizer.DefaultEncoding)
		if err != nil {
			// 見積もりはデバッグ用途のため、取得できなければ無効のまま続行する
			options.logger.Warn("TokenCounter 初期化に失敗しました", slog.String("error", err.Error()))
		} else {
			tokenCounter = counter
		}
	}

	// 失敗ログ
	errorLog, err := errorlog.New(cfg.ErrorLogDir, options.logger)
	if err != nil {
		return nil, fmt.Errorf("エラーログ初期化に失敗しました: %w", err)
	}
	c.errorLog = errorLog

	// メトリクス
	c.Metrics = metrics.NewCollector()

	usageRecorders := []completion.UsageRecorder{c.Metrics}

	// コスト集計
	if cfg.PricingFile != "" {
		table, err := pricing.Load(cfg.PricingFile)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("価格設定の読み込みに失敗しました: %w", err)
		}
		c.Costs = pricing.NewTracker(table, options.logger)
		usageRecorders = append(usageRecorders, c.Costs)
	}

	// 使用量台帳 (PostgreSQL)
	if cfg.DatabaseURL != "" {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.database = db
		c.Ledger = database.NewUsageLedger(db)
		if err := c.Ledger.EnsureSchema(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("スキーマ作成に失敗しました: %w", err)
		}
		usageRecorders = append(usageRecorders, c.Ledger)
	}

	clientOpts := []completion.Option{
		completion.WithLogger(options.logger),
		completion.WithUsageRecorder(usageRecorders...),
		completion.WithFailureRecorder(c.Metrics, c.errorLog),
	}
	if tokenCounter != nil {
		clientOpts = append(clientOpts, completion.WithTokenCounter(tokenCounter))
	}
	clientOpts = append(clientOpts, options.clientOpts...)

	c.Client = completion.NewClient(creator, clientCfg, clientOpts...)

	return c, nil
}

// Save はクライアントの設定と累積カウンタを読み込み元のファイルへ書き戻す。
// 環境変数から補ったAPIキーは書き出さない。
func (c *Container) Save() error {
	if c.configPath == "" {
		return fmt.Errorf("config path is not set")
	}
	cfg := c.Client.Config()
	if c.keyFromEnv {
		cfg.APIKey = ""
	}
	return configstore.Save(c.configPath, cfg)
}

// ConfigPath は読み込んだ設定ファイルのパスを返す。
func (c *Container) ConfigPath() string {
	return c.configPath
}

// Close は内部リソースを解放する。
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.errorLog != nil {
		if err := c.errorLog.Close(); err != nil {
			c.Logger().Warn("エラーログのクローズに失敗しました", slog.String("error", err.Error()))
		}
	}
	if c.database != nil {
		c.database.Close()
	}
}

// Logger はロガーを返す。
func (c *Container) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す。
func (c *Container) Database() *database.Database {
	if c == nil {
		return nil
	}
	return c.database
}
