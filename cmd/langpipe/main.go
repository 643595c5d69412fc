package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Maxlinn/LangPipe/cmd/langpipe/commands"
	"github.com/Maxlinn/LangPipe/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定 (コマンド実行時に環境設定で上書きされる)
	logger.New(logger.DefaultConfig())

	app := commands.NewApp()
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
