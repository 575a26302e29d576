package cli

import (
	"github.com/urfave/cli/v3"

	"github.com/jinford/chat-rag/internal/core/llm"
	"github.com/jinford/chat-rag/internal/core/vectorindex"
	"github.com/jinford/chat-rag/internal/platform/container"
)

// NewCommand は chat-rag のルートコマンドを組み立てる
func NewCommand(opts ...container.ContainerOption) *cli.Command {
	a := &App{options: opts}

	return &cli.Command{
		Name:  "chat-rag",
		Usage: "文書を取り込み、会話履歴を踏まえて質問に回答する RAG サービス",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "ディレクトリ・ファイル・GitリポジトリURLの文書をコレクションに取り込む",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "path",
						Usage:    "取り込むパスまたはGitリポジトリURL",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding",
						Usage: "埋め込みプロバイダ (hosted/local)",
						Value: string(llm.EmbeddingHosted),
					},
					&cli.StringFlag{
						Name:  "collection",
						Usage: "コレクション名",
						Value: vectorindex.DefaultCollectionName,
					},
					&cli.BoolFlag{
						Name:  "drop-existing",
						Usage: "既存のコレクションを削除して作り直す",
					},
				},
				Action: a.IngestAction,
			},
			{
				Name:      "query",
				Usage:     "会話履歴を踏まえて質問に回答する",
				ArgsUsage: "<質問文>",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:  "session-id",
						Usage: "セッションID（UUID v4、省略時は新規発行）",
					},
					&cli.StringFlag{
						Name:  "model",
						Usage: "言語モデル (hosted/local-variant-a/local-variant-b)",
						Value: string(llm.ModelHosted),
					},
					&cli.StringFlag{
						Name:  "collection",
						Usage: "コレクション名",
						Value: vectorindex.DefaultCollectionName,
					},
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照ソースを表示",
						Value: true,
					},
				},
				Action: a.QueryAction,
			},
			{
				Name:  "session",
				Usage: "セッション履歴コマンド",
				Commands: []*cli.Command{
					{
						Name:  "list",
						Usage: "セッションのターンを挿入順に表示",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "session-id",
								Usage:    "セッションID",
								Required: true,
							},
						},
						Action: a.SessionListAction,
					},
					{
						Name:  "delete",
						Usage: "セッションの履歴をすべて削除",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "session-id",
								Usage:    "セッションID",
								Required: true,
							},
						},
						Action: a.SessionDeleteAction,
					},
				},
			},
			{
				Name:  "server",
				Usage: "サーバ関連コマンド",
				Commands: []*cli.Command{
					{
						Name:  "start",
						Usage: "HTTPサーバを起動",
						Flags: []cli.Flag{
							envFlag(),
							&cli.IntFlag{
								Name:  "port",
								Usage: "HTTPポート（省略時は HTTP_PORT またはデフォルトの8080）",
							},
						},
						Action: a.ServerStartAction,
					},
				},
			},
		},
	}
}
