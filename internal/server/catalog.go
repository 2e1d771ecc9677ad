package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) SuggestBOMItems(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	items, err := s.catalogSvc.SuggestItems(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListBOMItems(c *gin.Context) {
	items, err := s.catalogSvc.ListAllItems(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
