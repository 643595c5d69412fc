package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
	"github.com/Maxlinn/LangPipe/internal/core/prompt"
	"github.com/Maxlinn/LangPipe/internal/infra/tokenizer"
)

// promptFlags はプロンプト断片を組み立てるフラグ群
func promptFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "role",
			Usage: "モデルに演じさせる役割 (例: senior Go engineer)",
		},
		&cli.StringFlag{
			Name:  "task",
			Usage: "タスクの説明 (例: summarize the text)",
		},
		&cli.StringSliceFlag{
			Name:  "text",
			Usage: "そのまま挿入する文章 (複数指定可)",
		},
		&cli.StringSliceFlag{
			Name:  "example",
			Usage: "回答例 (複数指定可)",
		},
		&cli.StringSliceFlag{
			Name:  "key",
			Usage: "key: value 形式で返答させるキー (複数指定可)",
		},
		&cli.StringSliceFlag{
			Name:  "key-description",
			Usage: "キーの説明 (--key と同じ数だけ指定)",
		},
		&cli.IntFlag{
			Name:  "count",
			Usage: "返答させる件数 (-1 はできるだけ多く)",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "no-other-words",
			Usage: "指定した形式以外の文章を返さないよう指示する",
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "断片の区切り文字",
			Value: prompt.DefaultDelimiter,
		},
	}
}

// buildPrompt はフラグからプロンプトを組み立てる
// 断片は role, task, text, example, key, no-other-words の順に並ぶ
func buildPrompt(cmd *cli.Command) (*prompt.Builder, error) {
	b := prompt.NewBuilder(nil, prompt.WithDelimiter(cmd.String("delimiter")))

	if role := cmd.String("role"); role != "" {
		b.Append(prompt.NewRole(role))
	}
	if task := cmd.String("task"); task != "" {
		b.Append(prompt.NewTask(task))
	}
	for _, text := range cmd.StringSlice("text") {
		b.Append(prompt.NewLiteral(text))
	}
	if examples := cmd.StringSlice("example"); len(examples) > 0 {
		fewShot, err := prompt.NewFewShot(examples...)
		if err != nil {
			return nil, fmt.Errorf("回答例が不正です: %w", err)
		}
		b.Append(fewShot)
	}
	if keys := cmd.StringSlice("key"); len(keys) > 0 {
		var descriptions []string
		if cmd.IsSet("key-description") {
			descriptions = cmd.StringSlice("key-description")
		}
		dict, err := prompt.NewRequestDict(keys, descriptions, cmd.Int("count"))
		if err != nil {
			return nil, fmt.Errorf("キー指定が不正です: %w", err)
		}
		b.Append(dict)
	}
	if cmd.Bool("no-other-words") {
		b.Append(prompt.NewNoOtherWords())
	}

	return b, nil
}

// RenderAction はフラグから組み立てたプロンプトを表示するコマンドのアクション
func RenderAction(ctx context.Context, cmd *cli.Command) error {
	b, err := buildPrompt(cmd)
	if err != nil {
		return err
	}
	if b.Len() == 0 {
		return fmt.Errorf("プロンプト断片が1つも指定されていません")
	}

	rendered := b.Render()
	out := writer(cmd)
	fmt.Fprintln(out, rendered)

	if cmd.Bool("tokens") {
		fmt.Fprintf(out, "\nトークン数: %d\n", countPromptTokens(rendered))
	}
	return nil
}

// countPromptTokens は system メッセージとして送った場合のトークン数を返す
// エンコーディングを取得できない場合は文字数からの推定値を返す
func countPromptTokens(rendered string) int {
	counter, err := tokenizer.NewCounter(tokenizer.DefaultEncoding)
	if err != nil {
		counter = nil
	}
	return counter.CountMessages([]completion.Message{{Role: completion.RoleSystem, Content: rendered}})
}
