// Package hawk implements Hawk request signing for the Threat Stack API.
// Every request carries an Authorization header whose MAC binds the HTTP
// method, URI, host, port, timestamp, nonce and - for requests with a body -
// a payload hash. The organization ID travels in the ext field as auxiliary
// authenticated data; it is never part of the payload hash.
package hawk

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCredentials is returned before any I/O when the credential set
// is incomplete or names an unsupported algorithm.
var ErrInvalidCredentials = errors.New("invalid hawk credentials")

// Credentials identifies an API key pair. The Threat Stack API only accepts
// sha256 MACs.
type Credentials struct {
	ID        string
	Key       string
	Algorithm string
}

func (c Credentials) validate() error {
	if c.ID == "" || c.Key == "" {
		return fmt.Errorf("%w: id and key are required", ErrInvalidCredentials)
	}
	if c.Algorithm != "sha256" {
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidCredentials, c.Algorithm)
	}
	return nil
}

// Signer produces Hawk authorization headers. Now and Nonce are injectable
// so tests can pin the timestamp and nonce; both default to the real clock
// and a random 8-byte nonce.
type Signer struct {
	Credentials Credentials

	Now   func() time.Time
	Nonce func() (string, error)
}

// NewSigner validates the credentials and returns a ready signer.
func NewSigner(creds Credentials) (*Signer, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	return &Signer{Credentials: creds}, nil
}

// Header signs one request and returns the Authorization header value.
// body may be nil for GET requests; when present it is hashed into the MAC
// together with contentType. ext carries the organization ID.
func (s *Signer) Header(rawURL, method string, body []byte, contentType, ext string) (string, error) {
	if err := s.Credentials.validate(); err != nil {
		return "", err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	ts := s.now().Unix()
	nonce, err := s.nonce()
	if err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	var hash string
	if len(body) > 0 {
		hash = payloadHash(body, contentType)
	}

	mac := s.mac(ts, nonce, method, u, hash, ext)

	var b strings.Builder
	fmt.Fprintf(&b, `Hawk id="%s", ts="%d", nonce="%s"`, s.Credentials.ID, ts, nonce)
	if hash != "" {
		fmt.Fprintf(&b, `, hash="%s"`, hash)
	}
	if ext != "" {
		fmt.Fprintf(&b, `, ext="%s"`, ext)
	}
	fmt.Fprintf(&b, `, mac="%s"`, mac)
	return b.String(), nil
}

// Verify parses a Hawk header produced by Header and recomputes the MAC for
// the given request under this signer's credentials. It exists for tests
// and for validating recorded requests; servers remain the arbiter of
// validity in production.
func (s *Signer) Verify(header, rawURL, method string, body []byte, contentType string) error {
	if err := s.Credentials.validate(); err != nil {
		return err
	}

	attrs, err := parseHeader(header)
	if err != nil {
		return err
	}
	if attrs["id"] != s.Credentials.ID {
		return fmt.Errorf("hawk id mismatch: %q", attrs["id"])
	}

	ts, err := strconv.ParseInt(attrs["ts"], 10, 64)
	if err != nil {
		return fmt.Errorf("parse ts: %w", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	if len(body) > 0 {
		want := payloadHash(body, contentType)
		if attrs["hash"] != want {
			return errors.New("hawk payload hash mismatch")
		}
	}

	want := s.mac(ts, attrs["nonce"], method, u, attrs["hash"], attrs["ext"])
	if !hmac.Equal([]byte(want), []byte(attrs["mac"])) {
		return errors.New("hawk mac mismatch")
	}
	return nil
}

// mac computes the base64 MAC over the Hawk 1.0 normalized request string.
func (s *Signer) mac(ts int64, nonce, method string, u *url.URL, hash, ext string) string {
	resource := u.EscapedPath()
	if resource == "" {
		resource = "/"
	}
	if u.RawQuery != "" {
		resource += "?" + u.RawQuery
	}

	normalized := strings.Join([]string{
		"hawk.1.header",
		strconv.FormatInt(ts, 10),
		nonce,
		strings.ToUpper(method),
		resource,
		strings.ToLower(u.Hostname()),
		hostPort(u),
		hash,
		ext,
	}, "\n") + "\n"

	m := hmac.New(sha256.New, []byte(s.Credentials.Key))
	m.Write([]byte(normalized))
	return base64.StdEncoding.EncodeToString(m.Sum(nil))
}

func (s *Signer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Signer) nonce() (string, error) {
	if s.Nonce != nil {
		return s.Nonce()
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// payloadHash computes the Hawk 1.0 payload hash. Only the media type part
// of the content type participates, lowercased.
func payloadHash(body []byte, contentType string) string {
	mediaType := contentType
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	h := sha256.New()
	h.Write([]byte("hawk.1.payload\n"))
	h.Write([]byte(mediaType))
	h.Write([]byte("\n"))
	h.Write(body)
	h.Write([]byte("\n"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func hostPort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	if u.Scheme == "https" {
		return "443"
	}
	return "80"
}

// parseHeader splits `Hawk k1="v1", k2="v2"` into its attributes.
func parseHeader(header string) (map[string]string, error) {
	const prefix = "Hawk "
	if !strings.HasPrefix(header, prefix) {
		return nil, fmt.Errorf("not a hawk header: %q", header)
	}

	attrs := make(map[string]string)
	for _, part := range strings.Split(header[len(prefix):], ",") {
		part = strings.TrimSpace(part)
		k, v, ok := strings.Cut(part, "=")
		if !ok || len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
			return nil, fmt.Errorf("malformed hawk attribute %q", part)
		}
		attrs[k] = v[1 : len(v)-1]
	}

	for _, required := range []string{"id", "ts", "nonce", "mac"} {
		if attrs[required] == "" {
			return nil, fmt.Errorf("hawk header missing %q", required)
		}
	}
	return attrs, nil
}
