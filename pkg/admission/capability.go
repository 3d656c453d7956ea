package admission

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trialstack/reportgate/pkg/rights"
	"github.com/trialstack/reportgate/pkg/settings"
)

// Capability is a short-lived hand-off token minted after the primary hop of
// a report fetch has fully authorized the request. The secondary hop
// presents it instead of a positional "skip IP check" flag; it proves the
// allow-list was already checked without weakening the token gate, which
// always re-runs.
type Capability struct {
	ID        string      `json:"id"`
	ProjectID int         `json:"project_id"`
	ReportID  int         `json:"report_id"`
	User      string      `json:"user"`
	RawData   bool        `json:"raw_data"`
	Tier      rights.Tier `json:"tier"`
	ExpiresAt int64       `json:"exp"`
}

// capabilityKeyContext domain-separates the signing key from the shared
// secret itself.
const capabilityKeyContext = "reportgate-relay-capability-v1"

// CapabilityIssuer mints and verifies relay capabilities. The signing key is
// derived from the configured shared secret, so every gateway instance in
// front of the same platform verifies the same tokens without extra key
// distribution.
type CapabilityIssuer struct {
	settings settings.Store
	ttl      time.Duration
}

// NewCapabilityIssuer creates an issuer with the given token lifetime.
func NewCapabilityIssuer(store settings.Store, ttl time.Duration) *CapabilityIssuer {
	return &CapabilityIssuer{settings: store, ttl: ttl}
}

// Mint signs a capability binding the already-authorized fetch parameters,
// including the de-identification tier the primary hop resolved, so the
// secondary hop performs only the fetch.
func (ci *CapabilityIssuer) Mint(ctx context.Context, projectID, reportID int, user string, rawData bool, tier rights.Tier) (string, error) {
	key, err := ci.signingKey(ctx)
	if err != nil {
		return "", err
	}

	claims := Capability{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ReportID:  reportID,
		User:      user,
		RawData:   rawData,
		Tier:      tier,
		ExpiresAt: time.Now().Add(ci.ttl).Unix(),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode capability: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(payload)

	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks the signature and expiry and returns the bound claims.
func (ci *CapabilityIssuer) Verify(ctx context.Context, token string) (*Capability, error) {
	key, err := ci.signingKey(ctx)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed capability token")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed capability payload")
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed capability signature")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, fmt.Errorf("capability signature mismatch")
	}

	var claims Capability
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("malformed capability claims: %w", err)
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, fmt.Errorf("capability expired")
	}

	return &claims, nil
}

func (ci *CapabilityIssuer) signingKey(ctx context.Context) ([]byte, error) {
	secret, err := ci.settings.SystemSetting(ctx, settings.KeyAPIToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read API token setting: %w", err)
	}
	if secret == "" {
		return nil, fmt.Errorf("no API token configured")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(capabilityKeyContext))
	return mac.Sum(nil), nil
}
