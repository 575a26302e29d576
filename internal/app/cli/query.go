package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/chat-rag/internal/core/chat"
	"github.com/jinford/chat-rag/internal/core/llm"
)

// QueryAction は質問応答コマンドのアクション
func (a *App) QueryAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("質問文を指定してください")
	}

	modelName, err := llm.ParseModelName(cmd.String("model"))
	if err != nil {
		return err
	}

	sessionID := cmd.String("session-id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	appCtx, err := a.NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.ChatService.Query(ctx, chat.QueryParams{
		Text:           question,
		SessionID:      sessionID,
		ModelName:      modelName,
		CollectionName: cmd.String("collection"),
	})
	if err != nil {
		appCtx.Logger().Error("query failed", "error", err)
		return err
	}

	w := output(cmd)
	fmt.Fprintln(w, result.Answer)

	if cmd.Bool("show-sources") && len(result.Sources) > 0 {
		fmt.Fprintln(w, "\n--- 参照ソース ---")
		for i, source := range result.Sources {
			fmt.Fprintf(w, "[%d] %s\n", i+1, source)
		}
	}

	if report, ok := result.Cost.Get(); ok {
		fmt.Fprintf(w, "\ntokens=%d (prompt=%d completion=%d) cost=$%.6f\n",
			report.TotalTokens, report.PromptTokens, report.CompletionTokens, report.TotalCostUSD)
	}
	fmt.Fprintf(w, "session=%s\n", sessionID)
	return nil
}
