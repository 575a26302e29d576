package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	httpapi "github.com/jinford/chat-rag/internal/interface/http"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション。
// ctx がキャンセルされると処理中のリクエストを待ってから停止する
func (a *App) ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := a.NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Container.Config
	port := cfg.HTTP.Port
	if p := cmd.Int("port"); p > 0 {
		port = int(p)
	}

	handler := httpapi.New(
		appCtx.Container.IngestService,
		appCtx.Container.ChatService,
		httpapi.WithLogger(appCtx.Logger()),
	)
	return httpapi.Run(ctx, fmt.Sprintf(":%d", port), handler, cfg.HTTP.ShutdownTimeout, appCtx.Logger())
}
