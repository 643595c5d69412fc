package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
	"github.com/Maxlinn/LangPipe/internal/infra/configstore"
	"github.com/Maxlinn/LangPipe/internal/infra/postgres"
	"github.com/Maxlinn/LangPipe/internal/infra/pricing"
	"github.com/Maxlinn/LangPipe/internal/platform/database"
)

// UsageShowAction は設定ファイルに保存された累積トークン数を表示するコマンドのアクション
func UsageShowAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	cfg, err := configstore.Load(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}

	var table *pricing.Table
	if pricingPath := cmd.String("pricing"); pricingPath != "" {
		table, err = pricing.Load(pricingPath)
		if err != nil {
			return fmt.Errorf("価格設定の読み込みに失敗: %w", err)
		}
	}

	displayConfigUsage(writer(cmd), path, cfg, table)
	return nil
}

// UsageReportAction は使用量台帳のモデル別累計を表示するコマンドのアクション
func UsageReportAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("env"))
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("LANGPIPE_DATABASE_URL が設定されていません")
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("データベース接続に失敗: %w", err)
	}
	defer db.Close()

	ledger := database.NewUsageLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("スキーマ作成に失敗: %w", err)
	}

	totals, err := ledger.Totals(ctx)
	if err != nil {
		return fmt.Errorf("使用量の取得に失敗: %w", err)
	}

	out := writer(cmd)
	if len(totals) == 0 {
		fmt.Fprintln(out, "使用量の記録はありません")
		return nil
	}

	displayLedgerTotals(out, totals)
	return nil
}

// displayConfigUsage は設定ファイルのカウンタをテーブル形式で表示する
// 価格表が与えられた場合は推定コストも表示する
func displayConfigUsage(w io.Writer, path string, cfg completion.Config, prices *pricing.Table) {
	fmt.Fprintf(w, "設定ファイル: %s\n\n", path)

	table := tablewriter.NewWriter(w)
	table.Header("項目", "値")
	table.Append("モデル", cfg.Model)
	table.Append("APIキー", completion.MaskKey(cfg.APIKey))
	table.Append("プロンプトトークン", fmt.Sprintf("%d", cfg.PromptTokens))
	table.Append("補完トークン", fmt.Sprintf("%d", cfg.CompletionTokens))
	table.Append("合計トークン", fmt.Sprintf("%d", cfg.TotalTokens))
	if prices != nil {
		if cost, err := prices.Cost(cfg.Model, cfg.Usage()); err == nil {
			table.Append("推定コスト", fmt.Sprintf("$%.4f", cost))
		} else {
			table.Append("推定コスト", "価格情報なし")
		}
	}
	table.Render()
}

// displayLedgerTotals はモデル別累計をテーブル形式で表示する
func displayLedgerTotals(w io.Writer, totals []postgres.ModelTotals) {
	table := tablewriter.NewWriter(w)
	table.Header("Model", "Requests", "Prompt", "Completion", "Total", "Updated At")

	var sum postgres.ModelTotals
	for _, t := range totals {
		table.Append(
			t.Model,
			fmt.Sprintf("%d", t.Requests),
			fmt.Sprintf("%d", t.PromptTokens),
			fmt.Sprintf("%d", t.CompletionTokens),
			fmt.Sprintf("%d", t.TotalTokens),
			t.UpdatedAt.Format("2006-01-02 15:04:05"),
		)
		sum.Requests += t.Requests
		sum.PromptTokens += t.PromptTokens
		sum.CompletionTokens += t.CompletionTokens
		sum.TotalTokens += t.TotalTokens
	}
	table.Append(
		"(all)",
		fmt.Sprintf("%d", sum.Requests),
		fmt.Sprintf("%d", sum.PromptTokens),
		fmt.Sprintf("%d", sum.CompletionTokens),
		fmt.Sprintf("%d", sum.TotalTokens),
		"",
	)

	table.Render()
}
