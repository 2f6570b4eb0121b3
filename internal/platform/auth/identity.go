package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Keycloak client ids the Health Gateway front ends authenticate through.
const (
	WebClientID    = "hg"
	MobileClientID = "hg-mobile"
)

// ClientType identifies which front end a caller signed in through.
type ClientType int

const (
	ClientTypeUnknown ClientType = iota
	ClientTypeWeb
	ClientTypeMobile
)

func (t ClientType) String() string {
	switch t {
	case ClientTypeWeb:
		return "web"
	case ClientTypeMobile:
		return "mobile"
	default:
		return "unknown"
	}
}

func UserIDFromContext(ctx context.Context) string {
	uid, _ := ctx.Value(UserIDKey).(string)
	return uid
}

func HdidFromContext(ctx context.Context) string {
	hdid, _ := ctx.Value(HdidKey).(string)
	return hdid
}

// AccessTokenFromContext returns the caller's raw bearer token, or "" for
// requests authenticated by DevAuthMiddleware.
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(AccessTokenKey).(string)
	return token
}

// ClientTypeFromContext maps the token's azp claim to a ClientType. An
// unrecognised or missing azp returns (ClientTypeUnknown, false).
func ClientTypeFromContext(ctx context.Context) (ClientType, bool) {
	azp, _ := ctx.Value(ClientIDKey).(string)
	switch azp {
	case WebClientID:
		return ClientTypeWeb, true
	case MobileClientID:
		return ClientTypeMobile, true
	default:
		return ClientTypeUnknown, false
	}
}

// SessionResponse describes the authenticated caller.
type SessionResponse struct {
	UserID     string `json:"user_id"`
	Hdid       string `json:"hdid,omitempty"`
	ClientType string `json:"client_type"`
}

// SessionHandler exposes the identity resolved by the auth middleware.
type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

func (h *SessionHandler) RegisterRoutes(api *echo.Group) {
	api.GET("/session", h.Get)
}

func (h *SessionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	userID := UserIDFromContext(ctx)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no authenticated user")
	}
	clientType, _ := ClientTypeFromContext(ctx)
	return c.JSON(http.StatusOK, SessionResponse{
		UserID:     userID,
		Hdid:       HdidFromContext(ctx),
		ClientType: clientType.String(),
	})
}
