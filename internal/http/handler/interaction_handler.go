package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/clientdirectory"
	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/gnaperror"
	"github.com/smallbiznis/gnap-auth/internal/http/middleware"
	"github.com/smallbiznis/gnap-auth/internal/service/access"
	grantsvc "github.com/smallbiznis/gnap-auth/internal/service/grant"
	"github.com/smallbiznis/gnap-auth/internal/service/interaction"
)

// InteractionHandler serves the browser-facing consent flow and the
// identity-provider callback API.
type InteractionHandler struct {
	grants      *grantsvc.Service
	coordinator *interaction.Coordinator
	registrar   *access.Registrar
	directory   clientdirectory.Directory
}

func NewInteractionHandler(grants *grantsvc.Service, coordinator *interaction.Coordinator, registrar *access.Registrar, directory clientdirectory.Directory) *InteractionHandler {
	return &InteractionHandler{grants: grants, coordinator: coordinator, registrar: registrar, directory: directory}
}

// Start handles GET /interact/:id/:nonce: marks the grant pending and sends
// the resource owner to the tenant's identity provider.
func (h *InteractionHandler) Start(c *gin.Context) {
	tenantRow, ok := middleware.GetTenant(c)
	if !ok {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "tenant not resolved"))
		return
	}

	session, err := h.coordinator.GetBySession(c.Request.Context(), c.Param("id"), c.Param("nonce"))
	if err != nil {
		writeInteractionError(c, err)
		return
	}
	if err := h.grants.MarkPending(c.Request.Context(), session.GrantID, tenantRow); err != nil {
		writeError(c, err)
		return
	}

	redirect, err := url.Parse(tenantRow.IdpConsentURL)
	if err != nil {
		writeError(c, err)
		return
	}
	query := redirect.Query()
	query.Set("interactId", session.ID)
	query.Set("nonce", session.Nonce)
	name, uri := c.Query("clientName"), c.Query("clientUri")
	if name == "" && uri == "" {
		name, uri = h.clientDisplay(c, session.GrantID)
	}
	if name != "" {
		query.Set("clientName", name)
	}
	if uri != "" {
		query.Set("clientUri", uri)
	}
	redirect.RawQuery = query.Encode()
	c.Redirect(http.StatusFound, redirect.String())
}

// clientDisplay resolves the requesting client's published display metadata
// when the caller did not pass it along. Best effort: the consent screen
// still renders without it.
func (h *InteractionHandler) clientDisplay(c *gin.Context, grantID string) (string, string) {
	grant, err := h.grants.GetByID(c.Request.Context(), grantID)
	if err != nil {
		return "", ""
	}
	display, err := h.directory.GetDisplay(c.Request.Context(), grant.ClientID)
	if err != nil {
		zap.L().Warn("could not resolve client display metadata",
			zap.String("client", grant.ClientID), zap.Error(err))
		return "", ""
	}
	return display.Name, display.URI
}

// Finish handles GET /interact/:id/:nonce/finish: sends the resource owner
// back to the client with either the tamper-proof hash plus interact_ref or
// a failure result.
func (h *InteractionHandler) Finish(c *gin.Context) {
	session, err := h.coordinator.GetBySession(c.Request.Context(), c.Param("id"), c.Param("nonce"))
	if err != nil {
		writeInteractionError(c, err)
		return
	}
	grant, err := h.grants.GetByID(c.Request.Context(), session.GrantID)
	if err != nil {
		writeError(c, err)
		return
	}
	if grant.FinishURI == "" {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "grant has no finish uri"))
		return
	}

	redirect, err := url.Parse(grant.FinishURI)
	if err != nil {
		writeError(c, err)
		return
	}
	query := redirect.Query()
	switch {
	case session.State == domain.InteractionStateApproved && grant.State == domain.GrantStateApproved:
		query.Set("hash", h.coordinator.FinishHash(grant.ClientNonce, session.Nonce, session.Ref))
		query.Set("interact_ref", session.Ref)
	case session.State == domain.InteractionStateDenied || grant.Rejected():
		query.Set("result", "grant_rejected")
	default:
		query.Set("result", "grant_invalid")
	}
	redirect.RawQuery = query.Encode()
	c.Redirect(http.StatusFound, redirect.String())
}

type grantDetailsResponse struct {
	GrantID string               `json:"grantId"`
	Access  []domain.AccessItem  `json:"access"`
	State   string               `json:"state"`
	Subject []domain.SubjectItem `json:"subject,omitempty"`
}

// GetGrant handles GET /grant/:id/:nonce: the identity provider fetches the
// grant details it renders on the consent screen.
func (h *InteractionHandler) GetGrant(c *gin.Context) {
	if !h.authorizeIdp(c) {
		return
	}
	session, err := h.coordinator.GetBySession(c.Request.Context(), c.Param("id"), c.Param("nonce"))
	if err != nil {
		writeInteractionError(c, err)
		return
	}

	grant, err := h.grants.GetByID(c.Request.Context(), session.GrantID)
	if err != nil {
		writeError(c, err)
		return
	}
	accessRows, err := h.registrar.GetAccess(c.Request.Context(), grant.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	subjects, err := h.registrar.GetSubjects(c.Request.Context(), grant.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := grantDetailsResponse{GrantID: grant.ID, State: string(grant.State)}
	for _, a := range accessRows {
		resp.Access = append(resp.Access, a.Item())
	}
	for _, s := range subjects {
		resp.Subject = append(resp.Subject, s.Item())
	}
	c.JSON(http.StatusOK, resp)
}

// Choice handles POST /grant/:id/:nonce/:choice: the identity provider
// reports the resource owner's decision.
func (h *InteractionHandler) Choice(c *gin.Context) {
	if !h.authorizeIdp(c) {
		return
	}
	session, err := h.coordinator.GetBySession(c.Request.Context(), c.Param("id"), c.Param("nonce"))
	if err != nil {
		writeInteractionError(c, err)
		return
	}

	switch c.Param("choice") {
	case "accept":
		if err := h.coordinator.Approve(c.Request.Context(), session.ID); err != nil {
			writeError(c, err)
			return
		}
		if err := h.grants.Approve(c.Request.Context(), session.GrantID); err != nil {
			writeError(c, err)
			return
		}
	case "reject":
		if err := h.coordinator.Deny(c.Request.Context(), session.ID); err != nil {
			writeError(c, err)
			return
		}
		if err := h.grants.Reject(c.Request.Context(), session.GrantID); err != nil {
			writeError(c, err)
			return
		}
	default:
		writeError(c, gnaperror.NewWithStatus(gnaperror.CodeInvalidRequest, http.StatusNotFound, "unknown choice"))
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *InteractionHandler) authorizeIdp(c *gin.Context) bool {
	tenantRow, ok := middleware.GetTenant(c)
	if !ok || !tenantRow.HasIdentityProvider() {
		writeError(c, gnaperror.New(gnaperror.CodeRequestDenied, "tenant has no identity provider configured"))
		return false
	}
	secret := c.GetHeader("x-idp-secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(tenantRow.IdpSecret)) != 1 {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidClient, "invalid identity provider secret"))
		return false
	}
	return true
}

func writeInteractionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, interaction.ErrNotFound):
		writeError(c, gnaperror.New(gnaperror.CodeUnknownInteraction, "unknown interaction"))
	case errors.Is(err, interaction.ErrExpired):
		writeError(c, gnaperror.New(gnaperror.CodeInvalidInteraction, "interaction expired"))
	default:
		writeError(c, err)
	}
}
