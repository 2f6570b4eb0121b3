package phn

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ValidateRequest is the body accepted by POST /phn/validate.
type ValidateRequest struct {
	PHN *string `json:"phn"`
}

// ValidateResponse reports the outcome without echoing the number back.
type ValidateResponse struct {
	Valid bool `json:"valid"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/phn/validate", h.Validate)
}

func (h *Handler) Validate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PHN == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "phn is required")
	}
	return c.JSON(http.StatusOK, ValidateResponse{Valid: Valid(*req.PHN)})
}
