package httpsig

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sign attaches Signature and Signature-Input headers covering @method,
// @target-uri, plus content-digest and authorization when present. Used by
// clients of this server and by tests; the server side only verifies.
func Sign(r *http.Request, body []byte, priv ed25519.PrivateKey, keyID string) error {
	components := []string{"@method", "@target-uri"}
	if len(body) > 0 {
		r.Header.Set("Content-Digest", ContentDigest(body))
		components = append(components, "content-digest")
	}
	if r.Header.Get("Authorization") != "" {
		components = append(components, "authorization")
	}

	quoted := make([]string, 0, len(components))
	for _, c := range components {
		quoted = append(quoted, fmt.Sprintf("%q", c))
	}
	raw := fmt.Sprintf("(%s);created=%d;keyid=%q",
		strings.Join(quoted, " "), time.Now().Unix(), keyID)

	in := Input{Label: "sig1", Components: components, KeyID: keyID, Raw: raw}
	base, err := SignatureBase(r, in)
	if err != nil {
		return err
	}

	sig := ed25519.Sign(priv, []byte(base))
	r.Header.Set("Signature-Input", "sig1="+raw)
	r.Header.Set("Signature", "sig1=:"+base64.StdEncoding.EncodeToString(sig)+":")
	return nil
}
