package commands

import (
	"github.com/urfave/cli/v3"
)

// NewApp はコマンドツリーを作成する
func NewApp() *cli.Command {
	return &cli.Command{
		Name:  "langpipe",
		Usage: "プロンプト断片の組み立てと Chat Completion 呼び出しのためのツール",
		Commands: []*cli.Command{
			{
				Name:  "render",
				Usage: "プロンプト断片を組み立てて表示",
				Flags: append(promptFlags(), &cli.BoolFlag{
					Name:  "tokens",
					Usage: "トークン数も表示する",
				}),
				Action: RenderAction,
			},
			{
				Name:      "chat",
				Usage:     "会話を送信して返答を表示",
				ArgsUsage: "[user発言 assistant発言 user発言 ...]",
				Flags:     chatFlags(),
				Action:    ChatAction,
			},
			{
				Name:  "config",
				Usage: "クライアント設定ファイル管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "クライアント設定ファイルを作成",
						Flags: []cli.Flag{
							envFlag(),
							configFlag(),
							&cli.StringFlag{
								Name:  "model",
								Usage: "モデル名 (未指定時は LANGPIPE_MODEL)",
							},
							&cli.StringFlag{
								Name:  "api-key",
								Usage: "APIキー (未指定時は OPENAI_API_KEY)",
							},
							&cli.BoolFlag{
								Name:  "force",
								Usage: "既存のファイルを上書きする",
							},
						},
						Action: ConfigInitAction,
					},
				},
			},
			{
				Name:  "usage",
				Usage: "トークン使用量コマンド",
				Commands: []*cli.Command{
					{
						Name:  "show",
						Usage: "設定ファイルの累積トークン数を表示",
						Flags: []cli.Flag{
							configFlag(),
							&cli.StringFlag{
								Name:  "pricing",
								Usage: "価格設定ファイル (YAML) を指定すると推定コストも表示",
							},
						},
						Action: UsageShowAction,
					},
					{
						Name:   "report",
						Usage:  "使用量台帳 (PostgreSQL) のモデル別累計を表示",
						Flags:  []cli.Flag{envFlag()},
						Action: UsageReportAction,
					},
				},
			},
			{
				Name:  "metrics",
				Usage: "メトリクスコマンド",
				Commands: []*cli.Command{
					{
						Name:  "serve",
						Usage: "標準入力の各行を送信しながら Prometheus メトリクスを公開",
						Flags: append([]cli.Flag{
							envFlag(),
							configFlag(),
							&cli.StringFlag{
								Name:  "addr",
								Usage: "リッスンアドレス (未指定時は LANGPIPE_METRICS_ADDR)",
							},
							&cli.IntFlag{
								Name:  "max-tries",
								Usage: "レート制限時の最大試行回数 (未指定時は環境設定)",
							},
							&cli.DurationFlag{
								Name:  "delay",
								Usage: "レート制限時の再試行間隔 (未指定時は環境設定)",
							},
						}, promptFlags()...),
						Action: MetricsServeAction,
					},
				},
			},
		},
	}
}
