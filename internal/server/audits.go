package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/rfidtrack/internal/audit/domain"
	obslogger "github.com/smallbiznis/rfidtrack/internal/observability/logger"
	"github.com/smallbiznis/rfidtrack/pkg/db/pagination"
)

func (s *Server) ListAudits(c *gin.Context) {
	var query struct {
		pagination.Pagination
		TagID   string `form:"tag_id"`
		Printed string `form:"printed"`
		Result  string `form:"result"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	printed, err := parseOptionalBool(query.Printed)
	if err != nil {
		AbortWithError(c, newValidationError("printed", "invalid_printed", "invalid printed"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		TagID:   strings.TrimSpace(query.TagID),
		Printed: printed,
		Result:  strings.TrimSpace(query.Result),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAuditByID(c *gin.Context) {
	entry, err := s.auditSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) MarkAuditPrinted(c *gin.Context) {
	entry, err := s.auditSvc.MarkPrinted(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordAuditPrint(c.Request.Context())
	}
	c.Set(obslogger.ContextTagIDKey, entry.TagID)
	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) RenderAuditLabel(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	reader, err := s.auditSvc.RenderLabel(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="audit-`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", body)
}
