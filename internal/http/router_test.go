package http_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/gnap-auth/internal/clientdirectory"
	"github.com/smallbiznis/gnap-auth/internal/config"
	"github.com/smallbiznis/gnap-auth/internal/domain"
	transport "github.com/smallbiznis/gnap-auth/internal/http"
	"github.com/smallbiznis/gnap-auth/internal/http/handler"
	"github.com/smallbiznis/gnap-auth/internal/http/middleware"
	"github.com/smallbiznis/gnap-auth/internal/httpsig"
	"github.com/smallbiznis/gnap-auth/internal/service/access"
	"github.com/smallbiznis/gnap-auth/internal/service/grant"
	"github.com/smallbiznis/gnap-auth/internal/service/interaction"
	"github.com/smallbiznis/gnap-auth/internal/service/token"
	"github.com/smallbiznis/gnap-auth/internal/tenant"
	"github.com/smallbiznis/gnap-auth/internal/testutil"
)

const (
	clientURL   = "https://wallet.example/alice"
	clientKeyID = "client-key-1"
	idpSecret   = "idp-secret"
)

type stubDirectory struct {
	key jose.JSONWebKey
}

func (d stubDirectory) GetDisplay(ctx context.Context, client string) (clientdirectory.Display, error) {
	return clientdirectory.Display{Name: "Test Client", URI: client}, nil
}

func (d stubDirectory) GetKey(ctx context.Context, client, keyID string) (jose.JSONWebKey, error) {
	if client != clientURL || keyID != d.key.KeyID {
		return jose.JSONWebKey{}, clientdirectory.ErrKeyNotFound
	}
	return d.key, nil
}

type env struct {
	srv  *httptest.Server
	priv ed25519.PrivateKey
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	directory := stubDirectory{key: jose.JSONWebKey{Key: pub, KeyID: clientKeyID, Algorithm: "EdDSA", Use: "sig"}}

	grants := testutil.NewMemoryGrantRepo()
	accesses := testutil.NewMemoryAccessRepo(grants)
	subjects := testutil.NewMemorySubjectRepo()
	interactions := testutil.NewMemoryInteractionRepo()
	tokens := testutil.NewMemoryAccessTokenRepo()
	webhooks := testutil.NewMemoryWebhookEventRepo()
	tenants := testutil.NewMemoryTenantRepo(domain.Tenant{
		ID:            "tenant-1",
		Host:          "auth.example",
		IsDefault:     true,
		IdpConsentURL: "https://idp.example/consent",
		IdpSecret:     idpSecret,
	})

	registrar := access.NewRegistrar(accesses, subjects)
	coordinator := interaction.NewCoordinator(interactions, 10*time.Minute, "http://auth.example")
	issuer := token.NewIssuer(testutil.NopDB{}, tokens, accesses, grants, webhooks, 10*time.Minute, 32)
	grantService := grant.NewService(testutil.NopDB{}, grants, tokens, webhooks, registrar, coordinator, issuer, 0)

	cfg := config.Config{
		ServiceName:        "gnap-auth-test",
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Authorization", "Content-Type"},
	}
	router := transport.NewRouter(cfg,
		handler.NewGrantHandler(grantService, "http://auth.example", 0),
		handler.NewTokenHandler(issuer, directory, "http://auth.example"),
		handler.NewInteractionHandler(grantService, coordinator, registrar, directory),
		middleware.NewSignature(directory, grantService, issuer),
		tenant.NewResolver(tenants),
	)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{srv: srv, priv: priv}
}

func (e *env) client() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *env) signedRequest(t *testing.T, method, path string, body []byte, gnapToken string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if gnapToken != "" {
		req.Header.Set("Authorization", "GNAP "+gnapToken)
	}
	require.NoError(t, httpsig.Sign(req, body, e.priv, clientKeyID))
	return req
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), "body: %s", raw)
}

type grantResponseBody struct {
	Interact *struct {
		Redirect string `json:"redirect"`
		Finish   string `json:"finish"`
	} `json:"interact"`
	AccessToken *struct {
		Value     string              `json:"value"`
		Manage    string              `json:"manage"`
		Access    []domain.AccessItem `json:"access"`
		ExpiresIn int                 `json:"expires_in"`
	} `json:"access_token"`
	Continue struct {
		AccessToken struct {
			Value string `json:"value"`
		} `json:"access_token"`
		URI  string `json:"uri"`
		Wait int    `json:"wait"`
	} `json:"continue"`
}

func nonInteractiveGrantBody() []byte {
	return []byte(`{
		"client": "` + clientURL + `",
		"access_token": {"access": [{
			"type": "incoming-payment",
			"actions": ["create", "read"],
			"identifier": "` + clientURL + `"
		}]}
	}`)
}

func interactiveGrantBody() []byte {
	return []byte(`{
		"client": "` + clientURL + `",
		"access_token": {"access": [{
			"type": "outgoing-payment",
			"actions": ["create"],
			"identifier": "` + clientURL + `"
		}]},
		"interact": {
			"start": ["redirect"],
			"finish": {"method": "redirect", "uri": "https://client.example/finish", "nonce": "client-nonce"}
		}
	}`)
}

func TestNonInteractiveGrantOverHTTP(t *testing.T) {
	e := newEnv(t)

	resp, err := e.client().Do(e.signedRequest(t, http.MethodPost, "/", nonInteractiveGrantBody(), ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body grantResponseBody
	decodeJSON(t, resp, &body)
	require.Nil(t, body.Interact)
	require.NotNil(t, body.AccessToken)
	require.NotEmpty(t, body.AccessToken.Value)
	require.Contains(t, body.AccessToken.Manage, "/token/")
	require.Contains(t, body.Continue.URI, "/continue/")
	require.NotEmpty(t, body.Continue.AccessToken.Value)

	// The minted token introspects as active.
	introspect, err := http.Post(e.srv.URL+"/introspect", "application/json",
		strings.NewReader(`{"access_token":"`+body.AccessToken.Value+`"}`))
	require.NoError(t, err)
	var status struct {
		Active   bool   `json:"active"`
		ClientID string `json:"client_id"`
	}
	decodeJSON(t, introspect, &status)
	require.True(t, status.Active)
	require.Equal(t, clientURL, status.ClientID)
}

func TestUnsignedGrantRequestIsRejected(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Post(e.srv.URL+"/", "application/json", bytes.NewReader(nonInteractiveGrantBody()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInteractiveGrantOverHTTP(t *testing.T) {
	e := newEnv(t)
	client := e.client()

	resp, err := client.Do(e.signedRequest(t, http.MethodPost, "/", interactiveGrantBody(), ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created grantResponseBody
	decodeJSON(t, resp, &created)
	require.NotNil(t, created.Interact)
	require.Nil(t, created.AccessToken)

	redirect, err := url.Parse(created.Interact.Redirect)
	require.NoError(t, err)
	interactPath := redirect.Path

	// Resource owner starts the interaction and is sent to the IDP. With no
	// display parameters on the request, the client's published metadata is
	// looked up and forwarded.
	startResp, err := client.Get(e.srv.URL + interactPath)
	require.NoError(t, err)
	startResp.Body.Close()
	require.Equal(t, http.StatusFound, startResp.StatusCode)
	idpURL, err := url.Parse(startResp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(idpURL.String(), "https://idp.example/consent"))
	require.Equal(t, "Test Client", idpURL.Query().Get("clientName"))
	require.Equal(t, clientURL, idpURL.Query().Get("clientUri"))

	// Display parameters passed by the caller win over the lookup.
	overrideResp, err := client.Get(e.srv.URL + interactPath + "?clientName=Acme")
	require.NoError(t, err)
	overrideResp.Body.Close()
	overrideURL, err := url.Parse(overrideResp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "Acme", overrideURL.Query().Get("clientName"))

	// IDP fetches the grant details, then accepts.
	detailsReq, err := http.NewRequest(http.MethodGet, e.srv.URL+strings.Replace(interactPath, "/interact/", "/grant/", 1), nil)
	require.NoError(t, err)
	detailsReq.Header.Set("x-idp-secret", idpSecret)
	detailsResp, err := client.Do(detailsReq)
	require.NoError(t, err)
	var details struct {
		GrantID string              `json:"grantId"`
		Access  []domain.AccessItem `json:"access"`
		State   string              `json:"state"`
	}
	decodeJSON(t, detailsResp, &details)
	require.Equal(t, "PENDING", details.State)
	require.Len(t, details.Access, 1)

	acceptReq, err := http.NewRequest(http.MethodPost,
		e.srv.URL+strings.Replace(interactPath, "/interact/", "/grant/", 1)+"/accept", nil)
	require.NoError(t, err)
	acceptReq.Header.Set("x-idp-secret", idpSecret)
	acceptResp, err := client.Do(acceptReq)
	require.NoError(t, err)
	acceptResp.Body.Close()
	require.Equal(t, http.StatusAccepted, acceptResp.StatusCode)

	// Finish reveals the interaction reference in the client redirect.
	finishResp, err := client.Get(e.srv.URL + interactPath + "/finish")
	require.NoError(t, err)
	finishResp.Body.Close()
	require.Equal(t, http.StatusFound, finishResp.StatusCode)
	finishURL, err := url.Parse(finishResp.Header.Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(finishURL.String(), "https://client.example/finish"))
	interactRef := finishURL.Query().Get("interact_ref")
	require.NotEmpty(t, interactRef)
	require.NotEmpty(t, finishURL.Query().Get("hash"))

	// Client continues with the reference and receives the token.
	continuePath := "/continue/" + lastSegment(created.Continue.URI)
	contResp, err := client.Do(e.signedRequest(t, http.MethodPost, continuePath,
		[]byte(`{"interact_ref":"`+interactRef+`"}`), created.Continue.AccessToken.Value))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, contResp.StatusCode)
	var issued grantResponseBody
	decodeJSON(t, contResp, &issued)
	require.NotNil(t, issued.AccessToken)
	require.NotEmpty(t, issued.AccessToken.Value)

	// Replaying the continuation fails closed.
	replayResp, err := client.Do(e.signedRequest(t, http.MethodPost, continuePath,
		[]byte(`{"interact_ref":"`+interactRef+`"}`), created.Continue.AccessToken.Value))
	require.NoError(t, err)
	replayResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, replayResp.StatusCode)
}

func TestContinueWithWrongTokenIsRejected(t *testing.T) {
	e := newEnv(t)
	client := e.client()

	resp, err := client.Do(e.signedRequest(t, http.MethodPost, "/", interactiveGrantBody(), ""))
	require.NoError(t, err)
	var created grantResponseBody
	decodeJSON(t, resp, &created)

	continuePath := "/continue/" + lastSegment(created.Continue.URI)
	contResp, err := client.Do(e.signedRequest(t, http.MethodPost, continuePath, nil, "wrong-token"))
	require.NoError(t, err)
	contResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, contResp.StatusCode)
}

func TestRevokeContinuationOverHTTP(t *testing.T) {
	e := newEnv(t)
	client := e.client()

	resp, err := client.Do(e.signedRequest(t, http.MethodPost, "/", nonInteractiveGrantBody(), ""))
	require.NoError(t, err)
	var created grantResponseBody
	decodeJSON(t, resp, &created)

	continuePath := "/continue/" + lastSegment(created.Continue.URI)
	delResp, err := client.Do(e.signedRequest(t, http.MethodDelete, continuePath, nil, created.Continue.AccessToken.Value))
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNoContent, delResp.StatusCode)

	// A second delete reports generic not found.
	delResp, err = client.Do(e.signedRequest(t, http.MethodDelete, continuePath, nil, created.Continue.AccessToken.Value))
	require.NoError(t, err)
	revokedBody, err := io.ReadAll(delResp.Body)
	require.NoError(t, err)
	delResp.Body.Close()
	require.Equal(t, http.StatusNotFound, delResp.StatusCode)

	// A continuation that never existed answers identically, so the
	// response cannot reveal whether the grant once existed.
	unknownResp, err := client.Do(e.signedRequest(t, http.MethodDelete, "/continue/no-such-id", nil, "no-such-token"))
	require.NoError(t, err)
	unknownBody, err := io.ReadAll(unknownResp.Body)
	require.NoError(t, err)
	unknownResp.Body.Close()
	require.Equal(t, http.StatusNotFound, unknownResp.StatusCode)
	require.JSONEq(t, string(revokedBody), string(unknownBody))

	// The cascaded token revocation shows up in introspection.
	introspect, err := http.Post(e.srv.URL+"/introspect", "application/json",
		strings.NewReader(`{"access_token":"`+created.AccessToken.Value+`"}`))
	require.NoError(t, err)
	var status struct {
		Active bool `json:"active"`
	}
	decodeJSON(t, introspect, &status)
	require.False(t, status.Active)
}

func TestRotateAndRevokeTokenOverHTTP(t *testing.T) {
	e := newEnv(t)
	client := e.client()

	resp, err := client.Do(e.signedRequest(t, http.MethodPost, "/", nonInteractiveGrantBody(), ""))
	require.NoError(t, err)
	var created grantResponseBody
	decodeJSON(t, resp, &created)

	manageID := lastSegment(created.AccessToken.Manage)
	rotateResp, err := client.Do(e.signedRequest(t, http.MethodPost, "/token/"+manageID, nil, ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rotateResp.StatusCode)
	var rotated struct {
		AccessToken struct {
			Value  string `json:"value"`
			Manage string `json:"manage"`
		} `json:"access_token"`
	}
	decodeJSON(t, rotateResp, &rotated)
	require.NotEqual(t, created.AccessToken.Value, rotated.AccessToken.Value)
	require.Equal(t, manageID, lastSegment(rotated.AccessToken.Manage))

	revokeResp, err := client.Do(e.signedRequest(t, http.MethodDelete, "/token/"+manageID, nil, ""))
	require.NoError(t, err)
	revokeResp.Body.Close()
	require.Equal(t, http.StatusNoContent, revokeResp.StatusCode)

	// Revoking again still succeeds.
	revokeResp, err = client.Do(e.signedRequest(t, http.MethodDelete, "/token/"+manageID, nil, ""))
	require.NoError(t, err)
	revokeResp.Body.Close()
	require.Equal(t, http.StatusNoContent, revokeResp.StatusCode)
}

func TestIdpEndpointsRequireSecret(t *testing.T) {
	e := newEnv(t)
	client := e.client()

	resp, err := client.Do(e.signedRequest(t, http.MethodPost, "/", interactiveGrantBody(), ""))
	require.NoError(t, err)
	var created grantResponseBody
	decodeJSON(t, resp, &created)

	redirect, err := url.Parse(created.Interact.Redirect)
	require.NoError(t, err)
	grantPath := strings.Replace(redirect.Path, "/interact/", "/grant/", 1)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+grantPath, nil)
	require.NoError(t, err)
	req.Header.Set("x-idp-secret", "wrong")
	detailsResp, err := client.Do(req)
	require.NoError(t, err)
	detailsResp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, detailsResp.StatusCode)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func lastSegment(uri string) string {
	parts := strings.Split(strings.TrimRight(uri, "/"), "/")
	return parts[len(parts)-1]
}
