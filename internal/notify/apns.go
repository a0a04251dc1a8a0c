package notify

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
)

// APNs endpoints.
const (
	APNsProductionURL = "https://api.push.apple.com"
	APNsSandboxURL    = "https://api.sandbox.push.apple.com"
)

const (
	// maxAPNsTokenLength bounds device tokens; current tokens are 64 hex chars.
	maxAPNsTokenLength = 200

	// providerTokenTTL is below Apple's 60 minute limit.
	providerTokenTTL = 50 * time.Minute

	apnsRequestTimeout = 10 * time.Second
	maxErrorBody       = 4 << 10
)

// apnsPayload is the JSON body of an alert notification.
type apnsPayload struct {
	APS apnsAPS `json:"aps"`
}

type apnsAPS struct {
	Alert string `json:"alert"`
	Sound string `json:"sound"`
	Badge int    `json:"badge"`
}

// APNsSender delivers alerts through Apple's HTTP/2 provider API using
// token-based (.p8 key) authentication.
type APNsSender struct {
	baseURL string
	topic   string
	keyID   string
	teamID  string
	key     *ecdsa.PrivateKey
	client  *http.Client
	now     func() time.Time

	mu        sync.Mutex
	token     string
	tokenTime time.Time
}

// APNsOption customises an APNsSender.
type APNsOption func(*APNsSender)

// WithAPNsBaseURL overrides the APNs endpoint.
func WithAPNsBaseURL(baseURL string) APNsOption {
	return func(s *APNsSender) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// NewAPNsSender loads the signing key from cfg.KeyFile and returns a sender
// for the sandbox or production environment.
func NewAPNsSender(cfg config.APNsConfig, opts ...APNsOption) (*APNsSender, error) {
	pemBytes, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidKey, cfg.KeyFile, err)
	}
	return NewAPNsSenderFromPEM(pemBytes, cfg, opts...)
}

// NewAPNsSenderFromPEM is NewAPNsSender with the key already in memory.
func NewAPNsSenderFromPEM(pemBytes []byte, cfg config.APNsConfig, opts ...APNsOption) (*APNsSender, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	baseURL := APNsProductionURL
	if cfg.Sandbox {
		baseURL = APNsSandboxURL
	}

	s := &APNsSender{
		baseURL: baseURL,
		topic:   cfg.Topic,
		keyID:   cfg.KeyID,
		teamID:  cfg.TeamID,
		key:     key,
		client:  &http.Client{Timeout: apnsRequestTimeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send posts one alert to a device.
func (s *APNsSender) Send(ctx context.Context, token, message string) error {
	if !validAPNsToken(token) {
		return ErrInvalidToken
	}

	body, err := json.Marshal(apnsPayload{APS: apnsAPS{Alert: message, Sound: "default", Badge: 1}})
	if err != nil {
		return fmt.Errorf("encoding apns payload: %w", err)
	}

	bearer, err := s.providerToken()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/3/device/"+url.PathEscape(token), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building apns request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", s.topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("apns-expiration", "0")
	req.Header.Set("apns-id", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil
	}

	reason := readAPNsReason(resp.Body)
	if resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: %w: %s", ErrDeliveryFailed, ErrSubscriptionExpired, reason)
	}
	return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, reason)
}

// validAPNsToken reports whether token is a hex device token as issued by
// APNs. Anything else never reaches the request path.
func validAPNsToken(token string) bool {
	if token == "" || len(token) > maxAPNsTokenLength || len(token)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

// providerToken returns the cached ES256 provider token, re-signing it
// once it is older than providerTokenTTL.
func (s *APNsSender) providerToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Sub(s.tokenTime) < providerTokenTTL {
		return s.token, nil
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.teamID,
		"iat": now.Unix(),
	})
	tok.Header["kid"] = s.keyID

	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: signing provider token: %w", ErrInvalidKey, err)
	}

	s.token = signed
	s.tokenTime = now
	return signed, nil
}

func readAPNsReason(r io.Reader) string {
	var body struct {
		Reason string `json:"reason"`
	}
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || json.Unmarshal(data, &body) != nil || body.Reason == "" {
		return "unknown"
	}
	return body.Reason
}
