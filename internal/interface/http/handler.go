package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jinford/chat-rag/internal/core/chat"
	"github.com/jinford/chat-rag/internal/core/ingestion"
	"github.com/jinford/chat-rag/internal/core/llm"
)

type ingestRequest struct {
	SourcePath        string `json:"source_path"`
	EmbeddingProvider string `json:"embedding_provider"`
	CollectionName    string `json:"collection_name"`
	DropExisting      bool   `json:"drop_existing"`
}

type ingestResponse struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	Files      int    `json:"files"`
	Chunks     int    `json:"chunks"`
}

type queryRequest struct {
	Text           string `json:"text"`
	SessionID      string `json:"session_id"`
	ModelName      string `json:"model_name"`
	CollectionName string `json:"collection_name"`
}

type usageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	Requests         int `json:"requests"`
}

type queryResponse struct {
	Answer  string         `json:"answer"`
	Cost    *float64       `json:"cost"`
	Sources []string       `json:"sources"`
	Usage   *usageResponse `json:"usage"`
}

type deleteRequest struct {
	SessionID string `json:"session_id"`
}

type deleteResponse struct {
	Message string `json:"message"`
}

type turnResponse struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type historyResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []turnResponse `json:"turns"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	provider, err := llm.ParseEmbeddingProvider(req.EmbeddingProvider)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.ingest.Ingest(r.Context(), ingestion.IngestParams{
		SourcePath:        req.SourcePath,
		EmbeddingProvider: provider,
		CollectionName:    req.CollectionName,
		DropExisting:      req.DropExisting,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:     "success",
		Collection: result.CollectionName,
		Files:      result.Documents,
		Chunks:     result.Chunks,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	modelName, err := llm.ParseModelName(req.ModelName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.chat.Query(r.Context(), chat.QueryParams{
		Text:           req.Text,
		SessionID:      req.SessionID,
		ModelName:      modelName,
		CollectionName: req.CollectionName,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := queryResponse{
		Answer:  result.Answer,
		Sources: result.Sources,
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	if report, ok := result.Cost.Get(); ok {
		cost := report.TotalCostUSD
		resp.Cost = &cost
		resp.Usage = &usageResponse{
			PromptTokens:     report.PromptTokens,
			CompletionTokens: report.CompletionTokens,
			TotalTokens:      report.TotalTokens,
			Requests:         report.Requests,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.chat.DeleteSession(r.Context(), req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Message: result.Message})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	turns, err := s.chat.History(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := historyResponse{
		SessionID: sessionID,
		Turns:     make([]turnResponse, len(turns)),
	}
	for i, t := range turns {
		resp.Turns[i] = turnResponse{
			Query:     t.Query,
			Answer:    t.Answer,
			CreatedAt: t.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
