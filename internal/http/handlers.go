package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoryd/internal/blob"
	"github.com/fyrsmithlabs/memoryd/internal/catalog"
	"github.com/fyrsmithlabs/memoryd/internal/memory"
	"github.com/fyrsmithlabs/memoryd/internal/search"
	"github.com/fyrsmithlabs/memoryd/internal/vectorstore"
)

// userIDHeader carries the caller identity. Authentication itself is the
// reverse proxy's concern; memoryd trusts this header.
const userIDHeader = "X-User-ID"

func requestUserID(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		userID = c.QueryParam("user_id")
	}
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "user id required")
	}
	return userID, nil
}

// httpError maps internal errors onto HTTP statuses. NotFound conditions
// fold existence and authorization into one 404.
func httpError(err error) error {
	switch {
	case errors.Is(err, memory.ErrNotFound),
		errors.Is(err, search.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, blob.ErrNotExist):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, blob.ErrInvalidPath),
		errors.Is(err, vectorstore.ErrMissingUserScope):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// SaveConversationRequest is the request body for POST /api/v1/conversations.
type SaveConversationRequest struct {
	Messages []memory.IncomingMessage `json:"messages"`
}

func (s *Server) handleSaveConversation(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	var req SaveConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Messages) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "messages field is required")
	}

	conv, err := s.memory.SaveConversation(c.Request().Context(), userID, req.Messages)
	if err != nil {
		s.logger.Error(c.Request().Context(), "save conversation failed", zap.Error(err))
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	conv, err := s.memory.GetConversation(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (s *Server) handleListConversations(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	convs, err := s.memory.ListConversations(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, convs)
}

// SummaryRequest is the request body for POST /conversations/:id/summary.
type SummaryRequest struct {
	Style string `json:"style"`
}

// SummaryResponse is the response body for POST /conversations/:id/summary.
type SummaryResponse struct {
	ConversationID string `json:"conversationId"`
	Summary        string `json:"summary"`
}

func (s *Server) handleGenerateSummary(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	var req SummaryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	id := c.Param("id")
	summary, err := s.memory.GenerateSummary(c.Request().Context(), id, userID, req.Style)
	if err != nil {
		s.logger.Error(c.Request().Context(), "summary generation failed", zap.Error(err))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SummaryResponse{ConversationID: id, Summary: summary})
}

// SearchRequest is the request body for POST /api/v1/search.
type SearchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
	FileTypes []string `json:"fileTypes"`
	Tags      []string `json:"tags"`
}

func (s *Server) handleSearch(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	results, err := s.search.Search(c.Request().Context(), req.Query, userID, search.Options{
		Limit:     req.Limit,
		Offset:    req.Offset,
		FileTypes: req.FileTypes,
		Tags:      req.Tags,
	})
	if err != nil {
		s.logger.Error(c.Request().Context(), "search failed", zap.Error(err))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleGetFile(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	path := c.QueryParam("path")
	if path == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path parameter is required")
	}
	result, err := s.search.GetFileByPath(c.Request().Context(), path, userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleListFiles(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	recs, err := s.catalog.QueryFileRecords(c.Request().Context(), userID, catalog.FileQuery{
		FileType: c.QueryParam("file_type"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, recs)
}

// UploadFileRequest is the request body for POST /api/v1/files.
type UploadFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleUploadFile(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	var req UploadFileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Path == "" || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "path and content fields are required")
	}

	ctx := c.Request().Context()
	if err := s.memory.WriteBlob(ctx, userID, req.Path, []byte(req.Content)); err != nil {
		return httpError(err)
	}
	if err := s.indexer.IndexFile(ctx, req.Path, userID, ""); err != nil {
		s.logger.Error(ctx, "indexing uploaded file failed",
			zap.String("path", req.Path), zap.Error(err))
		return httpError(err)
	}
	rec, err := s.catalog.GetFileRecord(ctx, userID, req.Path)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

// ReindexResponse is the response body for POST /api/v1/reindex.
type ReindexResponse struct {
	FilesIndexed int `json:"filesIndexed"`
}

func (s *Server) handleReindex(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	indexed, err := s.indexer.ReindexUser(c.Request().Context(), userID)
	if err != nil {
		s.logger.Error(c.Request().Context(), "reindex failed", zap.Error(err))
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ReindexResponse{FilesIndexed: indexed})
}

func (s *Server) handleListRules(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	activeOnly, _ := strconv.ParseBool(c.QueryParam("active"))
	rules, err := s.memory.ListRules(c.Request().Context(), userID, activeOnly)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rules)
}

// CreateRuleRequest is the request body for POST /api/v1/rules.
type CreateRuleRequest struct {
	RuleType  string          `json:"ruleType"`
	Condition catalog.JSONMap `json:"condition"`
	Action    catalog.JSONMap `json:"action"`
	Active    *bool           `json:"active"`
}

func (s *Server) handleCreateRule(c echo.Context) error {
	userID, err := requestUserID(c)
	if err != nil {
		return err
	}
	var req CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	rule := &catalog.MemoryRule{
		UserID:    userID,
		RuleType:  req.RuleType,
		Condition: req.Condition,
		Action:    req.Action,
		Active:    true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}
	if err := s.memory.CreateRule(c.Request().Context(), rule); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, rule)
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
