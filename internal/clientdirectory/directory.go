// Package clientdirectory resolves a requesting client's display metadata
// and public keys from the client's published wallet address document and
// JWKS endpoint.
package clientdirectory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
)

// ErrKeyNotFound is returned when the client publishes no key with the
// requested key id.
var ErrKeyNotFound = errors.New("client key not found")

// Display is the client metadata shown to the resource owner during consent.
type Display struct {
	Name string
	URI  string
}

// Directory looks up client display metadata and public keys. Lookups are
// per-request; nothing is cached across calls.
type Directory interface {
	GetDisplay(ctx context.Context, client string) (Display, error)
	GetKey(ctx context.Context, client, keyID string) (jose.JSONWebKey, error)
}

// HTTPDirectory fetches client documents over HTTP.
type HTTPDirectory struct {
	client *http.Client
}

var _ Directory = (*HTTPDirectory)(nil)

func NewHTTPDirectory(timeout time.Duration) *HTTPDirectory {
	return &HTTPDirectory{client: &http.Client{Timeout: timeout}}
}

func (d *HTTPDirectory) GetDisplay(ctx context.Context, client string) (Display, error) {
	var doc struct {
		ID         string `json:"id"`
		PublicName string `json:"publicName"`
	}
	if err := d.getJSON(ctx, client, &doc); err != nil {
		return Display{}, fmt.Errorf("fetch client document: %w", err)
	}
	uri := doc.ID
	if uri == "" {
		uri = client
	}
	return Display{Name: doc.PublicName, URI: uri}, nil
}

func (d *HTTPDirectory) GetKey(ctx context.Context, client, keyID string) (jose.JSONWebKey, error) {
	var set jose.JSONWebKeySet
	if err := d.getJSON(ctx, strings.TrimRight(client, "/")+"/jwks.json", &set); err != nil {
		return jose.JSONWebKey{}, fmt.Errorf("fetch client jwks: %w", err)
	}
	for _, key := range set.Keys {
		if key.KeyID == keyID && key.Valid() {
			return key, nil
		}
	}
	return jose.JSONWebKey{}, ErrKeyNotFound
}

func (d *HTTPDirectory) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
