package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
)

// UserHandler serves the protected account and resource routes. Access is
// decided by the Authorize middleware before these handlers run.
type UserHandler struct {
	users    ports.UserRepository
	sessions ports.SessionService
}

func NewUserHandler(users ports.UserRepository, sessions ports.SessionService) *UserHandler {
	return &UserHandler{users: users, sessions: sessions}
}

// ownerCheckResponse reports who was let through. Admin is true when access
// was granted by role rather than ownership.
type ownerCheckResponse struct {
	ResourceType string `json:"resourceType"`
	ResourceID   int64  `json:"resourceId"`
	UserID       int64  `json:"userId"`
	Admin        bool   `json:"admin"`
}

type revokeSessionsResponse struct {
	UserID  int64 `json:"userId"`
	Revoked int64 `json:"revoked"`
}

// GetUser returns an account summary. Users may read their own account,
// admins any account.
//
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  ports.UserSummary
// @Failure      403  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /api/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	u, err := h.users.GetByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ports.UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	})
}

// RevokeSessions signs the account out of every device by revoking all of
// its refresh tokens. Outstanding access tokens stay valid until they expire.
//
// @Summary      Revoke all sessions
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  revokeSessionsResponse
// @Failure      403  {object}  map[string]any
// @Router       /api/users/{id}/sessions/revoke [post]
func (h *UserHandler) RevokeSessions(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	n, err := h.sessions.RevokeAllSessions(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, revokeSessionsResponse{UserID: id, Revoked: n})
}

// AdminPing answers only for principals holding the Admin role.
//
// @Summary      Admin ping
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]any
// @Router       /api/admin/ping [get]
func (h *UserHandler) AdminPing(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ChannelOwnerCheck confirms the caller owns the channel or is an admin.
//
// @Summary      Channel ownership check
// @Tags         channels
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Channel ID"
// @Success      200  {object}  ownerCheckResponse
// @Failure      403  {object}  map[string]any
// @Router       /api/channels/{id}/owner-check [get]
func (h *UserHandler) ChannelOwnerCheck(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ownerCheckResponse{
		ResourceType: domain.ResourceChannel,
		ResourceID:   id,
		UserID:       p.ID,
		Admin:        p.IsAdmin(),
	})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, domain.ErrMalformedRequest
	}
	return id, nil
}
