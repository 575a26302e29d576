package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// SessionListAction はセッションのターン一覧を表示するコマンドのアクション
func (a *App) SessionListAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := a.NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	turns, err := appCtx.Container.ChatService.History(ctx, cmd.String("session-id"))
	if err != nil {
		return err
	}

	w := output(cmd)
	if len(turns) == 0 {
		fmt.Fprintln(w, "ターンはありません")
		return nil
	}
	for i, t := range turns {
		fmt.Fprintf(w, "#%d %s\nQ: %s\nA: %s\n", i+1, t.CreatedAt.Format(time.RFC3339), t.Query, t.Answer)
	}
	return nil
}

// SessionDeleteAction はセッションの履歴を削除するコマンドのアクション
func (a *App) SessionDeleteAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := a.NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.ChatService.DeleteSession(ctx, cmd.String("session-id"))
	if err != nil {
		return err
	}

	appCtx.Logger().Info("session deleted", "sessionID", result.SessionID, "turns", result.Deleted)
	fmt.Fprintln(output(cmd), result.Message)
	return nil
}
