package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/juanmh10/RAG-AWS/internal/ai"
	"github.com/juanmh10/RAG-AWS/internal/extract"
	"github.com/juanmh10/RAG-AWS/internal/ledger"
	"github.com/juanmh10/RAG-AWS/internal/session"
	"github.com/juanmh10/RAG-AWS/internal/worker"
)

const (
	sessionCookieName = "rag_session"
	sessionCookieTTL  = 24 * 60 * 60
	maxUploadBytes    = 10 << 20 // 10 MB
)

var allowedContentTypes = []string{
	"application/pdf",
	"text/plain",
}

// Handler wires HTTP routes to the session document QA service.
type Handler struct {
	sessions *session.Service
	log      *zap.Logger
}

func NewHandler(sessions *session.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sessions: sessions, log: log}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.GET("/debug/session", h.sessionCookie(), h.debugSession)
	router.POST("/upload", h.sessionCookie(), h.upload)
	router.GET("/status", h.sessionCookie(), h.status)
	router.POST("/chat", h.sessionCookie(), h.chat)
	router.POST("/cleanup", h.sessionCookie(), h.cleanup)
}

// sessionCookie pins every client to an opaque session token. The token is
// the only session identity; there are no user accounts.
func (h *Handler) sessionCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookieName)
		if err != nil || sid == "" || uuid.Validate(sid) != nil {
			sid = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookieName, sid, sessionCookieTTL, "/", "", false, true)
		}
		c.Set(sessionCookieName, sid)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionCookieName)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) debugSession(c *gin.Context) {
	sid := sessionID(c)
	rec, err := h.sessions.Status(c.Request.Context(), sid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	payload := gin.H{"session_id": sid, "status": "none"}
	if rec != nil {
		payload["status"] = rec.Status
		payload["ts"] = rec.TS
	}
	c.JSON(http.StatusOK, payload)
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

func (h *Handler) upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	_ = f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	sniffLen := len(data)
	if sniffLen > 512 {
		sniffLen = 512
	}
	contentType := http.DetectContentType(data[:sniffLen])
	if !isAllowedContentType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	sid := sessionID(c)
	if err := h.sessions.Upload(c.Request.Context(), sid, file.Filename, data); err != nil {
		h.log.Warn("upload failed", zap.String("session_id", sid), zap.Error(err))
		switch {
		case errors.Is(err, worker.ErrBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		case errors.Is(err, session.ErrNoText), errors.Is(err, extract.ErrExtractionFailed):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no text could be extracted from the document"})
		case errors.Is(err, ai.ErrEmbeddingUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "embedding backend unavailable"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "indexing failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": ledger.StatusReady, "filename": file.Filename})
}

func (h *Handler) status(c *gin.Context) {
	sid := sessionID(c)
	rec, err := h.sessions.Status(c.Request.Context(), sid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"status": "none"})
		return
	}
	payload := gin.H{"status": rec.Status, "ts": rec.TS}
	if rec.Filename != "" {
		payload["filename"] = rec.Filename
	}
	if rec.Message != "" {
		payload["message"] = rec.Message
	}
	c.JSON(http.StatusOK, payload)
}

type chatRequest struct {
	Question string `json:"question"`
}

func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	sid := sessionID(c)
	answer, err := h.sessions.Answer(c.Request.Context(), sid, question)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrIndexNotReady):
			c.JSON(http.StatusConflict, gin.H{"error": "no document is ready for this session"})
		case errors.Is(err, session.ErrQuotaExceeded):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "session usage quota exceeded"})
		case errors.Is(err, worker.ErrBusy):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		case errors.Is(err, ai.ErrEmbeddingUnavailable), errors.Is(err, ai.ErrCompletionUnavailable):
			h.log.Warn("ai backend failed", zap.String("session_id", sid), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "model backend unavailable"})
		default:
			h.log.Error("answer failed", zap.String("session_id", sid), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "answer failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

func (h *Handler) cleanup(c *gin.Context) {
	sid := sessionID(c)
	if err := h.sessions.Purge(c.Request.Context(), sid); err != nil {
		if errors.Is(err, worker.ErrBusy) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
