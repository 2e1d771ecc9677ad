package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) ExportChangedTags(c *gin.Context) {
	if s.exportSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	since, err := parseSince(c.Query("since"))
	if err != nil {
		AbortWithError(c, newValidationError("since", "invalid_since", "invalid since"))
		return
	}

	wb, err := s.exportSvc.ChangedTags(c.Request.Context(), since)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+wb.Filename+`"`)
	c.Data(http.StatusOK, contentTypeXLSX, wb.Body)
}

func (s *Server) ArchiveChangedTags(c *gin.Context) {
	if s.exportSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	var req struct {
		Since string `json:"since"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	since, err := parseSince(req.Since)
	if err != nil {
		AbortWithError(c, newValidationError("since", "invalid_since", "invalid since"))
		return
	}

	res, err := s.exportSvc.Archive(c.Request.Context(), since)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
