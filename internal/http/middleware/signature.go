package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/gnap-auth/internal/clientdirectory"
	"github.com/smallbiznis/gnap-auth/internal/httpsig"
	grantsvc "github.com/smallbiznis/gnap-auth/internal/service/grant"
	tokensvc "github.com/smallbiznis/gnap-auth/internal/service/token"
)

const (
	ginClientKeyIDKey   = "clientKeyID"
	ginContinueTokenKey = "continueToken"
	ginRawBodyKey       = "rawBody"
)

// Signature verifies HTTP message signatures on the three privileged
// surfaces: grant initiation, continuation, and token management. Each
// variant resolves the expected key differently, but all enforce that the
// descriptor's keyid matches the key the grant was bound to before any
// cryptographic check.
type Signature struct {
	Directory clientdirectory.Directory
	Grants    *grantsvc.Service
	Tokens    *tokensvc.Issuer
}

func NewSignature(directory clientdirectory.Directory, grants *grantsvc.Service, tokens *tokensvc.Issuer) *Signature {
	return &Signature{Directory: directory, Grants: grants, Tokens: tokens}
}

// GrantInit verifies the signature on a grant-creation request. There is no
// grant yet, so the binding established here (the declared keyid) is what
// later requests are checked against.
func (m *Signature) GrantInit(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	sig, err := httpsig.Parse(c.Request.Header)
	if err != nil {
		abortSignature(c, err)
		return
	}

	var doc struct {
		Client string `json:"client"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Client == "" {
		abort(c, http.StatusBadRequest, "invalid_request", "client is required")
		return
	}

	key, err := m.Directory.GetKey(c.Request.Context(), doc.Client, sig.Input.KeyID)
	if err != nil {
		abortClient(c, err)
		return
	}
	if err := sig.Verify(c.Request, body, key); err != nil {
		abortSignature(c, err)
		return
	}

	c.Set(ginClientKeyIDKey, sig.Input.KeyID)
	c.Next()
}

// Continuation authenticates a continuation request: the GNAP bearer token
// must resolve the grant, and the signature must verify under the exact key
// the grant recorded at creation.
func (m *Signature) Continuation(c *gin.Context) {
	token, ok := GNAPToken(c)
	if !ok {
		abortContinuation(c)
		return
	}

	grant, err := m.Grants.GetByContinue(c.Request.Context(), c.Param("id"), token, true)
	if err != nil {
		abortContinuation(c)
		return
	}

	sig, err := httpsig.Parse(c.Request.Header)
	if err != nil {
		abortSignature(c, err)
		return
	}
	if sig.Input.KeyID != grant.ClientKeyID {
		abort(c, http.StatusUnauthorized, "invalid_client", "request signed with a key not bound to the grant")
		return
	}

	key, err := m.Directory.GetKey(c.Request.Context(), grant.ClientID, sig.Input.KeyID)
	if err != nil {
		abortClient(c, err)
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	if err := sig.Verify(c.Request, body, key); err != nil {
		abortSignature(c, err)
		return
	}

	c.Set(ginContinueTokenKey, token)
	c.Next()
}

// TokenManagement authenticates a rotate/revoke request against the key
// bound to the token's grant. A missing token on the revoke route still
// yields 204: revocation is idempotent and must not act as an existence
// oracle.
func (m *Signature) TokenManagement(c *gin.Context) {
	managed, err := m.Tokens.GetByManagementID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, tokensvc.ErrNotFound) {
			if c.Request.Method == http.MethodDelete {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			abort(c, http.StatusNotFound, "invalid_rotation", "token not found")
			return
		}
		abortInternal(c, err)
		return
	}

	grant, err := m.Grants.GetByID(c.Request.Context(), managed.GrantID)
	if err != nil {
		abortInternal(c, err)
		return
	}

	sig, err := httpsig.Parse(c.Request.Header)
	if err != nil {
		abortSignature(c, err)
		return
	}
	if sig.Input.KeyID != grant.ClientKeyID {
		abort(c, http.StatusUnauthorized, "invalid_client", "request signed with a key not bound to the grant")
		return
	}

	key, err := m.Directory.GetKey(c.Request.Context(), grant.ClientID, sig.Input.KeyID)
	if err != nil {
		abortClient(c, err)
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	if err := sig.Verify(c.Request, body, key); err != nil {
		abortSignature(c, err)
		return
	}

	c.Next()
}

// GNAPToken extracts the bearer token from an "Authorization: GNAP <token>"
// header.
func GNAPToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "GNAP") || token == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// GetClientKeyID returns the keyid the grant-init signature was verified
// under.
func GetClientKeyID(c *gin.Context) (string, bool) {
	value, ok := c.Get(ginClientKeyIDKey)
	if !ok {
		return "", false
	}
	keyID, ok := value.(string)
	return keyID, ok
}

// GetContinueToken returns the authenticated continuation token.
func GetContinueToken(c *gin.Context) (string, bool) {
	value, ok := c.Get(ginContinueTokenKey)
	if !ok {
		return "", false
	}
	token, ok := value.(string)
	return token, ok
}

// GetRawBody returns the request body captured during signature
// verification.
func GetRawBody(c *gin.Context) []byte {
	if value, ok := c.Get(ginRawBodyKey); ok {
		if body, ok := value.([]byte); ok {
			return body
		}
	}
	return nil
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid_request", "unreadable request body")
		return nil, false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Set(ginRawBodyKey, body)
	return body, true
}

// abortContinuation rejects a continuation whose credentials did not
// resolve. A DELETE answers with the same generic 404 the revocation
// handler gives for an already-revoked grant, so a guessed credential pair
// cannot reveal whether the grant ever existed.
func abortContinuation(c *gin.Context) {
	if c.Request.Method == http.MethodDelete {
		abort(c, http.StatusNotFound, "invalid_continuation", "not found")
		return
	}
	abort(c, http.StatusUnauthorized, "invalid_continuation", "invalid continuation credentials")
}

func abort(c *gin.Context, status int, code, description string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{"code": code, "description": description},
	})
}

// abortSignature collapses every signature failure into one message so a
// caller cannot tell which check failed.
func abortSignature(c *gin.Context, err error) {
	zap.L().Debug("signature verification failed", zap.Error(err))
	abort(c, http.StatusUnauthorized, "invalid_client", "signature verification failed")
}

func abortClient(c *gin.Context, err error) {
	zap.L().Debug("client key resolution failed", zap.Error(err))
	abort(c, http.StatusUnauthorized, "invalid_client", "could not resolve client key")
}

func abortInternal(c *gin.Context, err error) {
	zap.L().Error("request authentication failed", zap.Error(err))
	abort(c, http.StatusInternalServerError, "request_denied", "internal error")
}
