package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"intellidoc/internal/config"
	"intellidoc/internal/models"
	"intellidoc/internal/providers"
	"intellidoc/internal/retrieval"
	"intellidoc/internal/storage"
	"intellidoc/internal/util"
	"intellidoc/internal/vectorindex"
	"intellidoc/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

type Server struct {
	cfg       config.Config
	db        *storage.DB
	documents *storage.DocumentRepo
	chunks    *storage.ChunkRepo
	chats     *storage.ChatRepo
	messages  *storage.MessageRepo
	index     vectorindex.Index
	answerer  *retrieval.Answerer
	temporal  tclient.Client
	log       *zap.Logger
}

func NewServer(cfg config.Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	index := vectorindex.NewQdrant(vectorindex.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	})
	embedder, err := providers.NewEmbedding(cfg.EmbedProvider, cfg.EmbedDim)
	if err != nil {
		panic(err)
	}
	llm, err := providers.NewLLM(cfg.LLMProvider, cfg.EmbedDim)
	if err != nil {
		panic(err)
	}

	documents := storage.NewDocumentRepo(db)
	chunks := storage.NewChunkRepo(db)
	chats := storage.NewChatRepo(db)
	messages := storage.NewMessageRepo(db)
	answerer := retrieval.NewAnswerer(embedder, llm, index, chunks, documents, chats, messages, retrieval.Options{
		EmbedDim:       cfg.EmbedDim,
		SearchLimit:    cfg.SearchLimit,
		ScoreThreshold: cfg.ScoreThreshold,
		HistoryTurns:   cfg.HistoryTurns,
	}, log)

	return &Server{
		cfg:       cfg,
		db:        db,
		documents: documents,
		chunks:    chunks,
		chats:     chats,
		messages:  messages,
		index:     index,
		answerer:  answerer,
		temporal:  tc,
		log:       log,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/documents", s.handleDocuments)
	mux.HandleFunc("/documents/", s.handleDocumentScoped)
	mux.HandleFunc("/chats", s.handleChats)
	mux.HandleFunc("/chats/", s.handleChatScoped)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		docs, err := s.documents.ListDocuments(r.Context())
		if err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleDocumentScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/documents/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	documentID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			doc, err := s.documents.GetDocument(r.Context(), documentID)
			if err != nil {
				writeErr(w, statusFromErr(err), err)
				return
			}
			writeJSON(w, http.StatusOK, doc)
		case http.MethodDelete:
			s.handleDeleteDocument(w, r, documentID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) == 2 && parts[1] == "chunks" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		if _, err := s.documents.GetDocument(r.Context(), documentID); err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		chunks, err := s.chunks.ListChunksByDocument(r.Context(), documentID)
		if err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks})
		return
	}

	if len(parts) == 2 && parts[1] == "ingest" {
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		doc, err := s.documents.GetDocument(r.Context(), documentID)
		if err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		if err := s.documents.UpdateStatus(r.Context(), documentID, models.StatusPending, ""); err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		we, err := s.startIngest(r.Context(), doc)
		if err != nil {
			writeErr(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
		return
	}

	if len(parts) == 2 && parts[1] == "progress" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		var prog workflows.IngestStatus
		resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+documentID, "", workflows.QueryGetIngestStatus)
		if err != nil {
			// No live workflow to query; answer from the durable row.
			doc, dErr := s.documents.GetDocument(r.Context(), documentID)
			if dErr != nil {
				writeErr(w, statusFromErr(dErr), dErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.IngestStatus{
				DocumentID: documentID,
				Status:     doc.Status,
				FailReason: doc.FailReason,
			})
			return
		}
		if err := resp.Get(&prog); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, prog)
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no file provided"))
		return
	}
	fh := files[0]
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf files are accepted"))
		return
	}

	if err := util.EnsureDir(s.cfg.UploadDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	documentID := uuid.NewString()
	savedPath, size, err := saveUploadedFile(s.cfg.UploadDir, documentID, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	doc := models.Document{
		DocumentID: documentID,
		Filename:   filepath.Base(fh.Filename),
		FilePath:   savedPath,
		FileSize:   size,
		Status:     models.StatusPending,
	}
	if err := s.documents.CreateDocument(r.Context(), doc); err != nil {
		_ = os.Remove(savedPath)
		writeErr(w, statusFromErr(err), err)
		return
	}

	we, err := s.startIngest(r.Context(), doc)
	if err != nil {
		// Row and file are durable; the ingest endpoint can retry.
		s.log.Warn("ingest workflow start failed", zap.String("document_id", documentID), zap.Error(err))
		writeJSON(w, http.StatusCreated, map[string]any{"document": doc, "workflow_id": ""})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": doc, "workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) startIngest(ctx context.Context, doc models.Document) (tclient.WorkflowRun, error) {
	return s.temporal.ExecuteWorkflow(ctx, tclient.StartWorkflowOptions{
		ID:                                       "ingest-" + doc.DocumentID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.DocumentIngestWorkflow, workflows.DocumentIngestInput{
		DocumentID:   doc.DocumentID,
		FilePath:     doc.FilePath,
		Filename:     doc.Filename,
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	})
}

// handleDeleteDocument removes a document everywhere it lives: vector
// entries first, then the row (chunks and citations cascade), then the
// stored file. An index failure aborts before any durable state is lost.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	doc, err := s.documents.GetDocument(r.Context(), documentID)
	if err != nil {
		writeErr(w, statusFromErr(err), err)
		return
	}
	if err := s.index.DeleteByDocument(r.Context(), documentID); err != nil {
		writeErr(w, http.StatusBadGateway, err)
		return
	}
	if err := s.documents.DeleteDocument(r.Context(), documentID); err != nil {
		writeErr(w, statusFromErr(err), err)
		return
	}
	if doc.FilePath != "" {
		if rmErr := os.Remove(doc.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			s.log.Warn("failed to remove uploaded file", zap.String("path", doc.FilePath), zap.Error(rmErr))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": documentID})
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		chats, err := s.chats.ListChats(r.Context())
		if err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
	case http.MethodPost:
		var req struct {
			Title      string  `json:"title"`
			DocumentID *string `json:"document_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			req.Title = "New chat"
		}
		if req.DocumentID != nil {
			if _, err := s.documents.GetDocument(r.Context(), *req.DocumentID); err != nil {
				writeErr(w, statusFromErr(err), err)
				return
			}
		}
		chat := models.Chat{ChatID: uuid.NewString(), DocumentID: req.DocumentID, Title: req.Title}
		if err := s.chats.CreateChat(r.Context(), chat); err != nil {
			writeErr(w, statusFromErr(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, chat)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleChatScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/chats/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	chatID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			chat, err := s.chats.GetChat(r.Context(), chatID)
			if err != nil {
				writeErr(w, statusFromErr(err), err)
				return
			}
			msgs, err := s.messages.ListMessages(r.Context(), chatID)
			if err != nil {
				writeErr(w, statusFromErr(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"chat": chat, "messages": msgs})
		case http.MethodDelete:
			if err := s.chats.DeleteChat(r.Context(), chatID); err != nil {
				writeErr(w, statusFromErr(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": chatID})
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	if len(parts) == 2 && parts[1] == "messages" {
		switch r.Method {
		case http.MethodGet:
			s.handleListMessages(w, r, chatID)
		case http.MethodPost:
			s.handleAsk(w, r, chatID)
		default:
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		}
		return
	}

	writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, chatID string) {
	if _, err := s.chats.GetChat(r.Context(), chatID); err != nil {
		writeErr(w, statusFromErr(err), err)
		return
	}
	msgs, err := s.messages.ListMessages(r.Context(), chatID)
	if err != nil {
		writeErr(w, statusFromErr(err), err)
		return
	}
	type messageWithCitations struct {
		models.Message
		Citations []models.Citation `json:"citations,omitempty"`
	}
	out := make([]messageWithCitations, 0, len(msgs))
	for _, m := range msgs {
		mc := messageWithCitations{Message: m}
		if m.Role == "assistant" {
			citations, cErr := s.messages.ListCitations(r.Context(), m.MessageID)
			if cErr != nil {
				writeErr(w, statusFromErr(cErr), cErr)
				return
			}
			mc.Citations = citations
		}
		out = append(out, mc)
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, chatID string) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	msg, citations, err := s.answerer.Ask(r.Context(), chatID, req.Content)
	if err != nil {
		writeErr(w, statusFromErr(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "citations": citations})
}

func saveUploadedFile(dir, documentID string, fh *multipart.FileHeader) (string, int64, error) {
	src, err := fh.Open()
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, "upload-*.pdf")
	if err != nil {
		return "", 0, fmt.Errorf("create temp upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	finalPath := filepath.Join(dir, documentID+".pdf")
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", 0, fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, size, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func statusFromErr(err error) int {
	switch {
	case errors.Is(err, util.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, util.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrIntegrity):
		return http.StatusConflict
	case errors.Is(err, util.ErrDependencyUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "ID-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "ID-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "ID-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "ID-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "ID-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "ID-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "ID-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "ID-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "ID-API-5020"
		msg = "Upstream dependency unavailable. Retry shortly."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "empty query"):
			msg = "Message content is required."
		case strings.Contains(raw, "only pdf"):
			msg = "Only PDF files are accepted."
		case strings.Contains(raw, "no file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
