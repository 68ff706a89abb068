package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Signer generates and verifies the signed tracking URLs embedded in
// simulation emails: the open pixel, click redirects and the
// report-phishing link. Payloads are pipe-delimited and HMAC-signed so a
// recipient cannot forge events for another user.
type Signer struct {
	key     []byte
	baseURL string
}

// NewSigner creates a signer rooted at the capture endpoint base URL.
func NewSigner(signingKey, baseURL string) *Signer {
	return &Signer{key: []byte(signingKey), baseURL: strings.TrimRight(baseURL, "/")}
}

// OpenPixelURL returns the tracking pixel URL for an open event.
func (s *Signer) OpenPixelURL(campaignID, userID string) string {
	data := campaignID + "|" + userID
	return fmt.Sprintf("%s/track/open/%s/%s", s.baseURL, encode(data), s.sign(data))
}

// ClickURL returns a tracked redirect for the given landing URL.
func (s *Signer) ClickURL(campaignID, userID, targetURL string) string {
	data := campaignID + "|" + userID + "|" + targetURL
	return fmt.Sprintf("%s/track/click/%s/%s", s.baseURL, encode(data), s.sign(data))
}

// ReportURL returns the report-phishing link for a recipient.
func (s *Signer) ReportURL(campaignID, userID string) string {
	data := campaignID + "|" + userID
	return fmt.Sprintf("%s/track/report/%s/%s", s.baseURL, encode(data), s.sign(data))
}

// Decode verifies a signature and splits the payload. It returns an
// error for tampered or malformed payloads.
func (s *Signer) Decode(encoded, signature string, wantParts int) ([]string, error) {
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding")
	}
	data := string(decoded)
	if !s.verify(data, signature) {
		return nil, fmt.Errorf("invalid signature")
	}
	parts := strings.SplitN(data, "|", wantParts)
	if len(parts) != wantParts {
		return nil, fmt.Errorf("invalid payload format")
	}
	return parts, nil
}

func encode(data string) string {
	return base64.URLEncoding.EncodeToString([]byte(data))
}

func (s *Signer) sign(data string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (s *Signer) verify(data, signature string) bool {
	expected := s.sign(data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
