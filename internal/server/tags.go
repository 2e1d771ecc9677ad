package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/rfidtrack/internal/observability/context"
	obslogger "github.com/smallbiznis/rfidtrack/internal/observability/logger"
	tagdomain "github.com/smallbiznis/rfidtrack/internal/tag/domain"
)

type changedTagsQuery struct {
	Since       string `form:"since"`
	CursorTagID string `form:"cursor_tag_id"`
	Limit       string `form:"limit"`
}

func (s *Server) GetTagByTagID(c *gin.Context) {
	resp, err := s.tagSvc.GetByTagID(c.Request.Context(), c.Query("tid"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obslogger.ContextTagIDKey, resp.TagID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTagByLabel(c *gin.Context) {
	resp, err := s.tagSvc.GetByLabel(c.Request.Context(), c.Query("label_number"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obslogger.ContextTagIDKey, resp.TagID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTagByEPC(c *gin.Context) {
	resp, err := s.tagSvc.GetByEPC(c.Request.Context(), c.Query("epc"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obslogger.ContextTagIDKey, resp.TagID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RegisterTag(c *gin.Context) {
	var req tagdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Actor = requestActor(c, req.Actor)
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(req.TagID))

	resp, err := s.tagSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateTag(c *gin.Context) {
	var req tagdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TagID = c.Param("tag_id")
	req.Actor = requestActor(c, req.Actor)
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(req.TagID))

	resp, err := s.tagSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) VerifyTag(c *gin.Context) {
	var req tagdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Actor = requestActor(c, req.Actor)
	if strings.TrimSpace(req.DeviceID) == "" {
		req.DeviceID = obscontext.DeviceIDFromContext(c.Request.Context())
	}
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(req.TagID))

	resp, err := s.tagSvc.Verify(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkTagAudited(c *gin.Context) {
	var req tagdomain.MarkAuditedRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.TagID = c.Param("tag_id")
	req.Actor = requestActor(c, req.Actor)
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(req.TagID))

	resp, err := s.tagSvc.MarkAudited(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeregisterTag(c *gin.Context) {
	var req tagdomain.DeregisterRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	req.TagID = c.Param("tag_id")
	req.Actor = requestActor(c, req.Actor)
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(req.TagID))

	resp, err := s.tagSvc.Deregister(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReuseTag(c *gin.Context) {
	var req tagdomain.ReuseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TagID = c.Param("tag_id")
	req.Actor = requestActor(c, req.Actor)
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(req.TagID))

	resp, err := s.tagSvc.Reuse(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTagHistory(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	tagID := c.Param("tag_id")
	c.Set(obslogger.ContextTagIDKey, strings.TrimSpace(tagID))

	entries, err := s.tagSvc.History(c.Request.Context(), tagID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) ListChangedTags(c *gin.Context) {
	var query changedTagsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	since, err := parseSince(query.Since)
	if err != nil {
		AbortWithError(c, newValidationError("since", "invalid_since", "invalid since"))
		return
	}
	limit, err := parseOptionalInt(query.Limit)
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	resp, err := s.tagSvc.ListChangedSince(c.Request.Context(), tagdomain.ListChangedSinceRequest{
		Since:       since,
		CursorTagID: strings.TrimSpace(query.CursorTagID),
		Limit:       limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// requestActor falls back to the X-Actor header when the body names no
// actor. The service applies the configured default after that.
func requestActor(c *gin.Context, actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = strings.TrimSpace(c.GetHeader(HeaderActor))
	}
	if actor != "" {
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), actor))
	}
	return actor
}

// bindOptionalJSON accepts an empty body for routes whose fields are all
// optional.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		AbortWithError(c, invalidRequestError())
		return false
	}
	return true
}
