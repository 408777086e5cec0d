// Package httpsig implements detached HTTP message signatures: parsing the
// Signature and Signature-Input headers, rebuilding the canonical signature
// base from the covered components, and verifying the signature with the
// client's published Ed25519 key.
package httpsig

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jose "github.com/go-jose/go-jose/v4"
)

var (
	ErrMissingHeaders    = errors.New("missing signature headers")
	ErrMalformedInput    = errors.New("malformed signature input")
	ErrUncoveredRequired = errors.New("required component not covered")
	ErrDigestMismatch    = errors.New("content digest mismatch")
	ErrBadSignature      = errors.New("signature verification failed")
	ErrUnsupportedKey    = errors.New("unsupported key type")
)

// Input is the parsed Signature-Input descriptor.
type Input struct {
	Label      string
	Components []string
	KeyID      string
	// Raw is the descriptor with its leading label stripped; it becomes the
	// value of the final "@signature-params" line of the signature base.
	Raw string
}

// Covers reports whether the named component is in the covered list.
func (in Input) Covers(component string) bool {
	for _, c := range in.Components {
		if c == component {
			return true
		}
	}
	return false
}

// Signature is a parsed signature plus its input descriptor.
type Signature struct {
	Bytes []byte
	Input Input
}

// Parse extracts the signature and its descriptor from the request headers.
// Component names must be exactly lower-case; anything else is rejected
// before any cryptographic work.
func Parse(h http.Header) (Signature, error) {
	inputHeader := h.Get("Signature-Input")
	sigHeader := h.Get("Signature")
	if inputHeader == "" || sigHeader == "" {
		return Signature{}, ErrMissingHeaders
	}

	in, err := parseInput(inputHeader)
	if err != nil {
		return Signature{}, err
	}

	label, value, ok := strings.Cut(sigHeader, "=")
	if !ok || label != in.Label {
		return Signature{}, fmt.Errorf("%w: signature label mismatch", ErrMalformedInput)
	}
	value = strings.TrimSpace(value)
	if len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
		return Signature{}, fmt.Errorf("%w: signature value not byte-sequence encoded", ErrMalformedInput)
	}
	raw, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	return Signature{Bytes: raw, Input: in}, nil
}

func parseInput(header string) (Input, error) {
	label, rest, ok := strings.Cut(header, "=")
	if !ok || !strings.HasPrefix(rest, "(") {
		return Input{}, ErrMalformedInput
	}
	end := strings.Index(rest, ")")
	if end < 0 {
		return Input{}, ErrMalformedInput
	}

	in := Input{Label: strings.TrimSpace(label), Raw: rest}
	for _, item := range strings.Fields(rest[1:end]) {
		name := strings.Trim(item, `"`)
		if name == "" || name != strings.ToLower(name) {
			return Input{}, fmt.Errorf("%w: component %q", ErrMalformedInput, item)
		}
		in.Components = append(in.Components, name)
	}

	for _, param := range strings.Split(rest[end+1:], ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if ok && key == "keyid" {
			in.KeyID = strings.Trim(value, `"`)
		}
	}
	return in, nil
}

// Verify checks the request's signature against the resolved public key. The
// caller is responsible for key-binding (matching the descriptor's keyid to
// the key id recorded on the grant) before resolving the key.
func (s Signature) Verify(r *http.Request, body []byte, key jose.JSONWebKey) error {
	if !s.Input.Covers("@method") || !s.Input.Covers("@target-uri") {
		return fmt.Errorf("%w: @method and @target-uri", ErrUncoveredRequired)
	}
	if len(body) > 0 {
		if !s.Input.Covers("content-digest") {
			return fmt.Errorf("%w: content-digest", ErrUncoveredRequired)
		}
		if err := VerifyContentDigest(r.Header, body); err != nil {
			return err
		}
	}
	if r.Header.Get("Authorization") != "" && !s.Input.Covers("authorization") {
		return fmt.Errorf("%w: authorization", ErrUncoveredRequired)
	}

	base, err := SignatureBase(r, s.Input)
	if err != nil {
		return err
	}

	pub, ok := key.Key.(ed25519.PublicKey)
	if !ok {
		return ErrUnsupportedKey
	}
	if !ed25519.Verify(pub, []byte(base), s.Bytes) {
		return ErrBadSignature
	}
	return nil
}

// SignatureBase rebuilds the canonical signed payload: one line per covered
// component, then the signature-params line.
func SignatureBase(r *http.Request, in Input) (string, error) {
	var b strings.Builder
	for _, component := range in.Components {
		var value string
		switch component {
		case "@method":
			value = r.Method
		case "@target-uri":
			value = targetURI(r)
		default:
			values := r.Header.Values(http.CanonicalHeaderKey(component))
			if len(values) == 0 {
				return "", fmt.Errorf("%w: header %q absent", ErrUncoveredRequired, component)
			}
			value = strings.Join(values, ", ")
		}
		fmt.Fprintf(&b, "%q: %s\n", component, value)
	}
	fmt.Fprintf(&b, "%q: %s", "@signature-params", in.Raw)
	return b.String(), nil
}

func targetURI(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// ContentDigest produces a sha-512 Content-Digest header value for body.
func ContentDigest(body []byte) string {
	sum := sha512.Sum512(body)
	return "sha-512=:" + base64.StdEncoding.EncodeToString(sum[:]) + ":"
}

// VerifyContentDigest checks the Content-Digest header against the actual
// body. sha-512 and sha-256 are accepted.
func VerifyContentDigest(h http.Header, body []byte) error {
	header := h.Get("Content-Digest")
	if header == "" {
		return fmt.Errorf("%w: content-digest header absent", ErrDigestMismatch)
	}
	algo, value, ok := strings.Cut(header, "=")
	if !ok || len(value) < 2 || value[0] != ':' || value[len(value)-1] != ':' {
		return fmt.Errorf("%w: malformed header", ErrDigestMismatch)
	}
	want, err := base64.StdEncoding.DecodeString(value[1 : len(value)-1])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDigestMismatch, err)
	}

	var sum []byte
	switch algo {
	case "sha-512":
		s := sha512.Sum512(body)
		sum = s[:]
	case "sha-256":
		s := sha256.Sum256(body)
		sum = s[:]
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrDigestMismatch, algo)
	}
	if !equalBytes(sum, want) {
		return ErrDigestMismatch
	}
	return nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
