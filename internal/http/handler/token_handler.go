package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v4"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/clientdirectory"
	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/gnaperror"
	tokensvc "github.com/smallbiznis/gnap-auth/internal/service/token"
)

// TokenHandler serves token management and resource-server introspection.
type TokenHandler struct {
	issuer    *tokensvc.Issuer
	directory clientdirectory.Directory

	authServerURL string
}

func NewTokenHandler(issuer *tokensvc.Issuer, directory clientdirectory.Directory, authServerURL string) *TokenHandler {
	return &TokenHandler{
		issuer:        issuer,
		directory:     directory,
		authServerURL: strings.TrimRight(authServerURL, "/"),
	}
}

// Rotate handles POST /token/:id.
func (h *TokenHandler) Rotate(c *gin.Context) {
	fresh, access, err := h.issuer.Rotate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tokensvc.ErrNotFound) {
			writeError(c, gnaperror.New(gnaperror.CodeInvalidRotation, "token not found"))
			return
		}
		writeError(c, err)
		return
	}

	items := make([]domain.AccessItem, 0, len(access))
	for _, a := range access {
		items = append(items, a.Item())
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": accessTokenResponse{
			Value:     fresh.Value,
			Manage:    h.authServerURL + "/token/" + fresh.ManagementID,
			Access:    items,
			ExpiresIn: fresh.ExpiresIn,
		},
	})
}

// Revoke handles DELETE /token/:id. Always 204 on a well-formed request.
func (h *TokenHandler) Revoke(c *gin.Context) {
	if err := h.issuer.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type introspectRequest struct {
	AccessToken string              `json:"access_token"`
	Access      []domain.AccessItem `json:"access"`
}

type introspectResponse struct {
	Active   bool                `json:"active"`
	Grant    string              `json:"grant,omitempty"`
	Access   []domain.AccessItem `json:"access,omitempty"`
	Key      *jose.JSONWebKey    `json:"key,omitempty"`
	ClientID string              `json:"client_id,omitempty"`
}

// Introspect handles POST /introspect for resource servers.
func (h *TokenHandler) Introspect(c *gin.Context) {
	var req introspectRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.AccessToken == "" {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "access_token is required"))
		return
	}

	result, err := h.issuer.Introspect(c.Request.Context(), req.AccessToken, req.Access)
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Active {
		c.JSON(http.StatusOK, introspectResponse{Active: false})
		return
	}

	resp := introspectResponse{
		Active:   true,
		Grant:    result.Grant.ID,
		Access:   result.Access,
		ClientID: result.Grant.ClientID,
	}
	// Resource servers verify the client's request signatures themselves,
	// so hand them the bound key. Best effort: an unreachable client
	// document does not invalidate the token.
	key, err := h.directory.GetKey(c.Request.Context(), result.Grant.ClientID, result.Grant.ClientKeyID)
	if err != nil {
		zap.L().Warn("could not resolve client key for introspection",
			zap.String("client", result.Grant.ClientID), zap.Error(err))
	} else {
		resp.Key = &key
	}
	c.JSON(http.StatusOK, resp)
}
