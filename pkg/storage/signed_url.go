package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadRef is the content of a signed download token.
type DownloadRef struct {
	ExportID  string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies HMAC-SHA256 download tokens.
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

// Sign returns a token of the form exportID.expiry.path.signature, each part URL safe.
func (s *SignedURLSigner) Sign(exportID, relPath string) (string, DownloadRef, error) {
	if exportID == "" || relPath == "" {
		return "", DownloadRef{}, fmt.Errorf("export id and path required")
	}
	if len(s.secret) == 0 {
		return "", DownloadRef{}, fmt.Errorf("signing secret missing")
	}
	ref := DownloadRef{ExportID: exportID, Path: relPath, ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second)}
	body := strings.Join([]string{
		exportID,
		strconv.FormatInt(ref.ExpiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(relPath)),
	}, ".")
	return body + "." + s.signature(body), ref, nil
}

// Verify checks the signature and expiry of a token and returns what it references.
func (s *SignedURLSigner) Verify(token string) (DownloadRef, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return DownloadRef{}, ErrInvalidToken
	}
	body := strings.Join(parts[:3], ".")
	if !hmac.Equal([]byte(s.signature(body)), []byte(parts[3])) {
		return DownloadRef{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return DownloadRef{}, ErrInvalidToken
	}
	path, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return DownloadRef{}, ErrInvalidToken
	}
	ref := DownloadRef{ExportID: parts[0], Path: string(path), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(ref.ExpiresAt) {
		return ref, ErrTokenExpired
	}
	return ref, nil
}

func (s *SignedURLSigner) signature(body string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
