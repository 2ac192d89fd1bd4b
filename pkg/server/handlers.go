package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/ogimage"
	"github.com/m-mizutani/sortinghat/pkg/usecase/share"
	"github.com/m-mizutani/sortinghat/pkg/usecase/sorting"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) getUser(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.From(ctx)

	raw := c.Query("fid")
	if raw == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "FID query parameter is required"})
		return
	}
	fid, err := model.ParseFID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid FID format"})
		return
	}

	logger.Info("sorting user", "fid", fid)

	result, err := s.sorter.Sort(ctx, fid)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)

	case errors.Is(err, sorting.ErrUserNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "User not found or failed to fetch base data"})

	case errors.Is(err, sorting.ErrClassificationFailed):
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to analyze user profile"})

	default:
		logger.Error("failed to sort user", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

func (s *Server) getOG(c *gin.Context) {
	ctx := c.Request.Context()

	data, err := s.renderer.Render(ctx, ogimage.Params{
		House:       c.Query("house"),
		DisplayName: c.Query("displayName"),
		PfpURL:      c.Query("pfpUrl"),
	})
	if err != nil {
		logging.From(ctx).Error("failed to render share image", "error", err)
		c.String(http.StatusInternalServerError, "Failed to generate image: %s", err.Error())
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) createShareLink(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.From(ctx)

	var req model.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid share request body", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Details: err.Error()})
		return
	}

	artifact, err := s.sharer.CreateShareLink(ctx, &req)
	if err != nil {
		var upstream *share.UpstreamError
		switch {
		case errors.Is(err, model.ErrInvalidShareRequest):
			c.JSON(http.StatusBadRequest, errorResponse{Error: "Missing required parameters: house, displayName, fid"})

		case errors.Is(err, share.ErrAppURLNotConfigured):
			logger.Error("app url is not configured")
			c.JSON(http.StatusInternalServerError, errorResponse{Error: share.ErrAppURLNotConfigured.Error()})

		case errors.As(err, &upstream):
			c.JSON(upstream.Status, errorResponse{Error: upstream.Error()})

		default:
			logger.Error("failed to create share link", "error", err)
			c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Details: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, artifact.Link())
}
