package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed download token")
	ErrBadSignature   = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

// Download is the metadata carried by a signed download token.
type Download struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates HMAC-signed download tokens of the
// form jobID.expiry.base64(path).signature.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL returns the token lifetime.
func (s *SignedURLSigner) TTL() time.Duration { return s.ttl }

// Sign returns a token referencing the job and stored file path.
func (s *SignedURLSigner) Sign(jobID, relPath string) (string, Download, error) {
	if jobID == "" || relPath == "" {
		return "", Download{}, fmt.Errorf("jobID and relPath required")
	}
	if strings.Contains(jobID, ".") {
		return "", Download{}, fmt.Errorf("jobID must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", Download{}, fmt.Errorf("signing secret missing")
	}
	d := Download{JobID: jobID, Path: relPath, ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second)}
	ts := strconv.FormatInt(d.ExpiresAt.Unix(), 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{jobID, ts, encoded, s.mac(jobID, ts, encoded)}, ".")
	return token, d, nil
}

// Verify validates a token and returns its metadata. With allowExpired the
// expiry check is skipped, which cleanup routines rely on.
func (s *SignedURLSigner) Verify(token string, allowExpired bool) (Download, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Download{}, ErrMalformedToken
	}
	jobID, ts, encoded, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(jobID, ts, encoded)), []byte(signature)) {
		return Download{}, ErrBadSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Download{}, ErrMalformedToken
	}
	path, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Download{}, ErrMalformedToken
	}
	d := Download{JobID: jobID, Path: string(path), ExpiresAt: time.Unix(unix, 0)}
	if !allowExpired && s.now().After(d.ExpiresAt) {
		return Download{}, ErrTokenExpired
	}
	return d, nil
}

func (s *SignedURLSigner) mac(jobID, ts, encoded string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(jobID + "|" + ts + "|" + encoded))
	return hex.EncodeToString(h.Sum(nil))
}
