package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"studyrag/internal/answer"
	"studyrag/internal/documents"
	"studyrag/internal/lock"
	"studyrag/internal/models"
	"studyrag/internal/util"
	"studyrag/internal/workflows"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const ownerHeader = "X-User-ID"

type DocumentService interface {
	Upload(ctx context.Context, ownerID, filename string, r io.ReadSeeker, size int64) (documents.UploadResult, error)
	Get(ctx context.Context, ownerID, documentID string) (documents.Detail, error)
	List(ctx context.Context, ownerID string) ([]models.Document, error)
	Delete(ctx context.Context, ownerID, documentID string) error
	Progress(ctx context.Context, ownerID, documentID string) (workflows.IngestProgress, error)
}

type Answerer interface {
	Answer(ctx context.Context, req answer.Request) (answer.Result, error)
}

type Server struct {
	docs    DocumentService
	answers Answerer
	logger  *slog.Logger
}

func NewServer(docs DocumentService, answers Answerer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{docs: docs, answers: answers, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(gin.Recovery(), s.requestLog())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", ownerHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		writeErr(c, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	})
	r.NoRoute(func(c *gin.Context) {
		writeErr(c, http.StatusNotFound, fmt.Errorf("not found"))
	})

	r.GET("/healthz", s.handleHealthz)
	api := r.Group("/api/v1")
	api.Use(requireOwner())
	{
		api.POST("/documents/upload", s.handleUpload)
		api.GET("/documents", s.handleList)
		api.GET("/documents/:id", s.handleGet)
		api.GET("/documents/:id/progress", s.handleProgress)
		api.POST("/documents/:id/ask", s.handleAsk)
		api.DELETE("/documents/:id", s.handleDelete)
	}
	return r
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeErr(c, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()

	res, err := s.docs.Upload(c.Request.Context(), owner(c), fh.Filename, f, fh.Size)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (s *Server) handleList(c *gin.Context) {
	docs, err := s.docs.List(c.Request.Context(), owner(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleGet(c *gin.Context) {
	detail, err := s.docs.Get(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleProgress(c *gin.Context) {
	prog, err := s.docs.Progress(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, prog)
}

func (s *Server) handleAsk(c *gin.Context) {
	var req answer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.OwnerID = owner(c)
	req.DocumentID = c.Param("id")
	res, err := s.answers.Answer(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.docs.Delete(c.Request.Context(), owner(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
	}
	writeErr(c, code, err)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func requireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(ownerHeader))
		if id == "" {
			writeErr(c, http.StatusUnauthorized, fmt.Errorf("owner is required"))
			c.Abort()
			return
		}
		c.Set("ownerID", id)
		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString("ownerID")
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, util.ErrInvalidUpload), errors.Is(err, util.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, util.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeErr(c *gin.Context, code int, err error) {
	apiErr := toAPIError(code, err)
	c.JSON(code, gin.H{
		"error": gin.H{
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
	code := "SA-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		return apiError{
			Code:    "SA-API-5020",
			Message: "Upstream service unavailable. Retry shortly.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "SA-DB-5001",
				Message: "Database schema is not initialized. Restart the service to apply it.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "SA-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "SA-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "SA-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusUnauthorized:
		code = "SA-API-4010"
		msg = "Missing user identity."
	case status == http.StatusNotFound:
		code = "SA-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "SA-API-4009"
		msg = "Another upload of this file is in progress. Retry shortly."
	case status == http.StatusMethodNotAllowed:
		code = "SA-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "question is required"):
			msg = "A question is required."
		case strings.Contains(raw, "only .pdf files"):
			msg = "Only PDF files can be uploaded."
		case strings.Contains(raw, "no files provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}
