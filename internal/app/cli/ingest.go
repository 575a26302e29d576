package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/chat-rag/internal/core/ingestion"
	"github.com/jinford/chat-rag/internal/core/llm"
)

// IngestAction は文書取り込みコマンドのアクション
func (a *App) IngestAction(ctx context.Context, cmd *cli.Command) error {
	provider, err := llm.ParseEmbeddingProvider(cmd.String("embedding"))
	if err != nil {
		return err
	}

	appCtx, err := a.NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	result, err := appCtx.Container.IngestService.Ingest(ctx, ingestion.IngestParams{
		SourcePath:        cmd.String("path"),
		EmbeddingProvider: provider,
		CollectionName:    cmd.String("collection"),
		DropExisting:      cmd.Bool("drop-existing"),
	})
	if err != nil {
		appCtx.Logger().Error("ingestion failed", "error", err)
		return err
	}

	fmt.Fprintf(output(cmd), "collection=%s provider=%s files=%d chunks=%d skipped=%d\n",
		result.CollectionName,
		result.EmbeddingProvider,
		result.Documents,
		result.Chunks,
		result.SkippedFiles,
	)
	return nil
}
