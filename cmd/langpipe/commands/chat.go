package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
	"github.com/Maxlinn/LangPipe/internal/platform/config"
)

// chatFlags は chat コマンドのフラグ
func chatFlags() []cli.Flag {
	flags := []cli.Flag{
		envFlag(),
		configFlag(),
		&cli.StringSliceFlag{
			Name:  "option",
			Usage: "追加のリクエストパラメータ key=value (値はJSONとして解釈、失敗時は文字列)",
		},
		&cli.IntFlag{
			Name:  "max-tries",
			Usage: "レート制限時の最大試行回数 (未指定時は環境設定)",
		},
		&cli.DurationFlag{
			Name:  "delay",
			Usage: "レート制限時の再試行間隔 (未指定時は環境設定)",
		},
		&cli.BoolFlag{
			Name:  "no-save",
			Usage: "累積トークン数を設定ファイルへ書き戻さない",
		},
	}
	return append(flags, promptFlags()...)
}

// ChatAction は会話を送信して返答を表示するコマンドのアクション
// 引数は user / assistant の順に交互に並んだ会話として扱う。引数がなければ標準入力を1発言として読む
func ChatAction(ctx context.Context, cmd *cli.Command) error {
	conversation := cmd.Args().Slice()
	if len(conversation) == 0 {
		data, err := io.ReadAll(reader(cmd))
		if err != nil {
			return fmt.Errorf("標準入力の読み込みに失敗: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return fmt.Errorf("会話が指定されていません")
		}
		conversation = []string{text}
	}

	options, err := parseOptions(cmd.StringSlice("option"))
	if err != nil {
		return err
	}

	b, err := buildPrompt(cmd)
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"), cmd.String("config"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	policy := retryPolicy(cmd, appCtx.Config)
	client := appCtx.Container.Client

	replies, err := client.GenerateRetry(ctx, policy, conversation, b.Render(), options)
	if err != nil {
		return fmt.Errorf("補完の生成に失敗: %w", err)
	}

	out := writer(cmd)
	for i, reply := range replies {
		if i > 0 {
			fmt.Fprintln(out, "---")
		}
		fmt.Fprintln(out, reply)
	}
	if len(replies) == 0 {
		appCtx.Logger().Warn("返答がありませんでした", "model", client.Model())
	}
	if costs := appCtx.Container.Costs; costs != nil {
		appCtx.Logger().Info("estimated cost", "model", client.Model(), "cost_usd", costs.TotalCost())
	}

	if !cmd.Bool("no-save") {
		if err := appCtx.Container.Save(); err != nil {
			return fmt.Errorf("設定ファイルの保存に失敗: %w", err)
		}
	}
	return nil
}

// retryPolicy はフラグで上書きされた再試行ポリシーを返す
func retryPolicy(cmd *cli.Command, cfg *config.Config) completion.RetryPolicy {
	policy := cfg.Retry.Policy()
	if cmd.IsSet("max-tries") {
		policy.MaxTries = cmd.Int("max-tries")
	}
	if cmd.IsSet("delay") {
		policy.Delay = cmd.Duration("delay")
	}
	return policy
}

// parseOptions は key=value 形式の指定をリクエストパラメータに変換する
func parseOptions(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	options := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--option は key=value 形式で指定してください: %q", pair)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		options[key] = value
	}
	return options, nil
}
