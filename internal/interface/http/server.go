package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jinford/chat-rag/internal/core/chat"
	"github.com/jinford/chat-rag/internal/core/ingestion"
	"github.com/jinford/chat-rag/internal/core/session"
)

// Ingester は文書取り込みのユースケース
type Ingester interface {
	Ingest(ctx context.Context, params ingestion.IngestParams) (*ingestion.IngestResult, error)
}

// Chatter は会話型検索とセッション操作のユースケース
type Chatter interface {
	Query(ctx context.Context, params chat.QueryParams) (*chat.QueryResult, error)
	DeleteSession(ctx context.Context, rawSessionID string) (*chat.DeleteResult, error)
	History(ctx context.Context, rawSessionID string) ([]*session.Turn, error)
}

// Server はHTTPのルーティングを保持する
type Server struct {
	router *chi.Mux
	ingest Ingester
	chat   Chatter
	logger *slog.Logger
}

// Option は Server のオプション設定
type Option func(*Server)

// WithLogger はアクセスログとエラーログのロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New はルーティングを組み立てた Server を返す
func New(ingest Ingester, chat Chatter, opts ...Option) *Server {
	r := chi.NewRouter()
	s := &Server{
		router: r,
		ingest: ingest,
		chat:   chat,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(middleware.RequestID)
	r.Use(s.accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/doc_ingestion", s.handleIngest)
	r.Post("/query", s.handleQuery)
	r.Post("/delete", s.handleDelete)
	r.Get("/sessions/{sessionID}", s.handleHistory)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestID", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Run は ctx がキャンセルされるまでリクエストを受け付け、その後 shutdownTimeout 以内に停止する
func Run(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, listener, handler, shutdownTimeout, logger)
}

func serve(ctx context.Context, listener net.Listener, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down HTTP server", "timeout", shutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped")
		return nil
	}
}
