package license

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// DefaultNearExpiry is the window in which a valid license is flagged as
// about to expire.
const DefaultNearExpiry = 30 * 24 * time.Hour

const day = 24 * time.Hour

var (
	// ErrInvalidKey indicates a key that could not be decrypted or parsed.
	ErrInvalidKey = fmt.Errorf("%w: invalid license key", shared.ErrValidation)
	// ErrKeyExpired indicates a well-formed key whose expiration has passed.
	ErrKeyExpired = fmt.Errorf("%w: license key expired", shared.ErrValidation)
)

// Options tunes a Service.
type Options struct {
	NearExpiry time.Duration
	Now        func() time.Time
}

// Service implements key generation, activation and status.
type Service struct {
	repo       Repository
	cipher     *Cipher
	nearExpiry time.Duration
	now        func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, c *Cipher, opts Options) *Service {
	if opts.NearExpiry <= 0 {
		opts.NearExpiry = DefaultNearExpiry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, cipher: c, nearExpiry: opts.NearExpiry, now: opts.Now}
}

// GenerateKey seals a payload for company valid for the given number of days.
func (s *Service) GenerateKey(company string, days int) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", fmt.Errorf("%w: company required", shared.ErrValidation)
	}
	if days < 1 {
		return "", fmt.Errorf("%w: days must be at least 1", shared.ErrValidation)
	}
	issuedAt := s.now().UTC()
	payload := Payload{
		Company:    company,
		Expiration: issuedAt.Add(time.Duration(days) * day),
		Nonce:      uuid.NewString(),
		IssuedAt:   issuedAt,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("license: encode payload: %w", err)
	}
	return s.cipher.Seal(raw), nil
}

// Inspect decrypts a key without activating it.
func (s *Service) Inspect(key string) (Payload, error) {
	raw, err := s.cipher.Open(key)
	if err != nil {
		return Payload{}, ErrInvalidKey
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, ErrInvalidKey
	}
	if strings.TrimSpace(payload.Company) == "" || payload.Expiration.IsZero() {
		return Payload{}, ErrInvalidKey
	}
	return payload, nil
}

// Activate validates key and makes it the single active license.
func (s *Service) Activate(ctx context.Context, key string) (Activation, error) {
	key = strings.ToUpper(strings.TrimSpace(key))
	payload, err := s.Inspect(key)
	if err != nil {
		return Activation{}, err
	}
	now := s.now().UTC()
	if !payload.Expiration.After(now) {
		return Activation{}, ErrKeyExpired
	}
	lic, err := s.repo.Activate(ctx, key, payload.Company, payload.Expiration, now)
	if err != nil {
		return Activation{}, fmt.Errorf("license: activate: %w", err)
	}
	return Activation{Company: lic.Company, Expiration: lic.ExpiresAt}, nil
}

// Status reports the current license state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	lic, err := s.repo.ActiveLicense(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Status{Valid: false, Expired: true}, nil
		}
		return Status{}, fmt.Errorf("license: status: %w", err)
	}
	return s.statusOf(lic), nil
}

// Check is the gate decision: nil when entitled, shared.ErrLicenseExpired
// when not, and any other error when the store could not be consulted.
func (s *Service) Check(ctx context.Context) error {
	lic, err := s.repo.ActiveLicense(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.ErrLicenseExpired
		}
		return err
	}
	if !lic.ExpiresAt.After(s.now()) {
		return shared.ErrLicenseExpired
	}
	return nil
}

func (s *Service) statusOf(lic *License) Status {
	remaining := lic.ExpiresAt.Sub(s.now())
	expiresAt := lic.ExpiresAt
	status := Status{Company: lic.Company, ExpiresAt: &expiresAt}
	if remaining <= 0 {
		status.Expired = true
		return status
	}
	status.Valid = true
	status.DaysRemaining = int(math.Ceil(float64(remaining) / float64(day)))
	status.NearExpiry = remaining <= s.nearExpiry
	return status
}
