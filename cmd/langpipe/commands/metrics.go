package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/Maxlinn/LangPipe/internal/core/completion"
)

const shutdownTimeout = 5 * time.Second

// MetricsServeAction はメトリクスを HTTP で公開しながら、標準入力の各行を
// 1発言として補完を生成するコマンドのアクション
// 入力が尽きた後もシグナルを受けるまで公開を続ける
func MetricsServeAction(ctx context.Context, cmd *cli.Command) error {
	b, err := buildPrompt(cmd)
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"), cmd.String("config"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	addr := cmd.String("addr")
	if addr == "" {
		addr = appCtx.Config.MetricsAddr
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("リッスンに失敗: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", appCtx.Container.Metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	logger := appCtx.Logger()
	logger.Info("metrics server started", slog.String("addr", listener.Addr().String()))

	policy := retryPolicy(cmd, appCtx.Config)
	if err := runPromptLoop(ctx, appCtx.Container.Client, policy, b.Render(), reader(cmd), writer(cmd)); err != nil {
		logger.Error("prompt loop failed", slog.String("error", err.Error()))
	}
	if err := appCtx.Container.Save(); err != nil {
		logger.Warn("設定ファイルの保存に失敗しました", slog.String("error", err.Error()))
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("メトリクスサーバーが停止しました: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("メトリクスサーバーの停止に失敗: %w", err)
	}
	logger.Info("metrics server stopped")
	return nil
}

// runPromptLoop は r の各行を単発の会話として送信し、返答を w に書き出す
// 1行の失敗はログに残して次の行へ進む
func runPromptLoop(ctx context.Context, client *completion.Client, policy completion.RetryPolicy, system string, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		replies, err := client.GenerateRetry(ctx, policy, []string{line}, system, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("completion failed", slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintln(w, strings.Join(replies, "\n---\n"))
	}
	return scanner.Err()
}
