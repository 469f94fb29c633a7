package license

import "time"

// License is a stored activation.
type License struct {
	ID          int64
	Key         string
	Company     string
	ActivatedAt time.Time
	ExpiresAt   time.Time
	IsActive    bool
}

// Payload is the plaintext sealed inside a license key.
type Payload struct {
	Company    string    `json:"company"`
	Expiration time.Time `json:"expiration"`
	Nonce      string    `json:"nonce"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// Status is the public license state.
type Status struct {
	Valid         bool       `json:"valid"`
	Company       string     `json:"company,omitempty"`
	DaysRemaining int        `json:"daysRemaining"`
	Expired       bool       `json:"expired"`
	NearExpiry    bool       `json:"nearExpiry"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Activation is returned after a key was accepted.
type Activation struct {
	Company    string    `json:"company"`
	Expiration time.Time `json:"expiration"`
}
