package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/gnaperror"
	"github.com/smallbiznis/gnap-auth/internal/http/middleware"
	grantsvc "github.com/smallbiznis/gnap-auth/internal/service/grant"
)

// GrantHandler serves grant creation and continuation.
type GrantHandler struct {
	grants *grantsvc.Service

	authServerURL string
	waitSeconds   int
}

func NewGrantHandler(grants *grantsvc.Service, authServerURL string, waitSeconds int) *GrantHandler {
	return &GrantHandler{
		grants:        grants,
		authServerURL: strings.TrimRight(authServerURL, "/"),
		waitSeconds:   waitSeconds,
	}
}

type grantRequest struct {
	AccessToken *struct {
		Access []domain.AccessItem `json:"access"`
	} `json:"access_token"`
	Client   string           `json:"client"`
	Interact *interactRequest `json:"interact"`
	Subject  *struct {
		SubIDs []domain.SubjectItem `json:"sub_ids"`
	} `json:"subject"`
}

type interactRequest struct {
	Start  []string `json:"start"`
	Finish *struct {
		Method string `json:"method"`
		URI    string `json:"uri"`
		Nonce  string `json:"nonce"`
	} `json:"finish"`
}

type tokenValueResponse struct {
	Value string `json:"value"`
}

type continueResponse struct {
	AccessToken tokenValueResponse `json:"access_token"`
	URI         string             `json:"uri"`
	Wait        int                `json:"wait"`
}

type interactResponse struct {
	Redirect string `json:"redirect"`
	Finish   string `json:"finish"`
}

type accessTokenResponse struct {
	Value     string              `json:"value"`
	Manage    string              `json:"manage"`
	Access    []domain.AccessItem `json:"access"`
	ExpiresIn int                 `json:"expires_in"`
}

type grantResponse struct {
	Interact    *interactResponse    `json:"interact,omitempty"`
	AccessToken *accessTokenResponse `json:"access_token,omitempty"`
	Continue    continueResponse     `json:"continue"`
}

// Create handles POST /: a signed grant request.
func (h *GrantHandler) Create(c *gin.Context) {
	tenantRow, ok := middleware.GetTenant(c)
	if !ok {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "tenant not resolved"))
		return
	}
	clientKeyID, ok := middleware.GetClientKeyID(c)
	if !ok {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidClient, "request is not signed"))
		return
	}

	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "malformed grant request"))
		return
	}
	if req.Client == "" {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "client is required"))
		return
	}

	create := grantsvc.CreateRequest{
		ClientID:    req.Client,
		ClientKeyID: clientKeyID,
	}
	if req.AccessToken != nil {
		create.Access = req.AccessToken.Access
	}
	if req.Subject != nil {
		create.Subjects = req.Subject.SubIDs
	}
	if req.Interact != nil {
		spec := &grantsvc.InteractSpec{}
		for _, m := range req.Interact.Start {
			spec.Start = append(spec.Start, domain.StartMethod(m))
		}
		if req.Interact.Finish != nil {
			spec.FinishMethod = domain.FinishMethod(req.Interact.Finish.Method)
			spec.FinishURI = req.Interact.Finish.URI
			spec.Nonce = req.Interact.Finish.Nonce
		}
		create.Interact = spec
	}

	result, err := h.grants.Create(c.Request.Context(), tenantRow, create)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := grantResponse{Continue: h.continueEnvelope(result.Grant)}
	if result.Interaction != nil {
		resp.Interact = &interactResponse{
			Redirect: h.authServerURL + "/interact/" + result.Interaction.ID + "/" + result.Interaction.Nonce,
			Finish:   result.Interaction.Nonce,
		}
	}
	if result.Token != nil {
		resp.AccessToken = h.tokenEnvelope(*result.Token, result.Access)
	}
	c.JSON(http.StatusOK, resp)
}

// Continue handles POST /continue/:id: a poll (empty body) or an
// interaction-reference presentation.
func (h *GrantHandler) Continue(c *gin.Context) {
	token, ok := middleware.GetContinueToken(c)
	if !ok {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidContinuation, "missing continuation token"))
		return
	}

	var interactRef string
	if body := middleware.GetRawBody(c); len(body) > 0 {
		var req struct {
			InteractRef string `json:"interact_ref"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(c, gnaperror.New(gnaperror.CodeInvalidRequest, "malformed continuation request"))
			return
		}
		interactRef = req.InteractRef
	}

	result, err := h.grants.Continue(c.Request.Context(), c.Param("id"), token, interactRef)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := grantResponse{Continue: h.continueEnvelope(result.Grant)}
	if result.Token != nil {
		items := make([]domain.AccessItem, 0, len(result.Access))
		for _, a := range result.Access {
			items = append(items, a.Item())
		}
		resp.AccessToken = &accessTokenResponse{
			Value:     result.Token.Value,
			Manage:    h.authServerURL + "/token/" + result.Token.ManagementID,
			Access:    items,
			ExpiresIn: result.Token.ExpiresIn,
		}
	} else {
		resp.Continue.Wait = result.Wait
	}
	c.JSON(http.StatusOK, resp)
}

// Revoke handles DELETE /continue/:id. A continuation that cannot be
// revoked, because it never existed or already was, reports a generic not
// found.
func (h *GrantHandler) Revoke(c *gin.Context) {
	token, ok := middleware.GetContinueToken(c)
	if !ok {
		writeError(c, gnaperror.New(gnaperror.CodeInvalidContinuation, "missing continuation token"))
		return
	}

	if err := h.grants.RevokeByContinue(c.Request.Context(), c.Param("id"), token); err != nil {
		var gerr *grantsvc.Error
		if errors.As(err, &gerr) && gerr.Kind == grantsvc.ErrorInvalidContinuation {
			writeError(c, gnaperror.NewWithStatus(gnaperror.CodeInvalidContinuation, http.StatusNotFound, "not found"))
			return
		}
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GrantHandler) continueEnvelope(grant domain.Grant) continueResponse {
	return continueResponse{
		AccessToken: tokenValueResponse{Value: grant.ContinueToken},
		URI:         h.authServerURL + "/continue/" + grant.ContinueID,
		Wait:        h.waitSeconds,
	}
}

func (h *GrantHandler) tokenEnvelope(token domain.AccessToken, access []domain.Access) *accessTokenResponse {
	items := make([]domain.AccessItem, 0, len(access))
	for _, a := range access {
		items = append(items, a.Item())
	}
	return &accessTokenResponse{
		Value:     token.Value,
		Manage:    h.authServerURL + "/token/" + token.ManagementID,
		Access:    items,
		ExpiresIn: token.ExpiresIn,
	}
}
