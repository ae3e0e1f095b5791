package models

import "time"

// RateLimit caps how often a stored key may be used. Duration is in seconds.
type RateLimit struct {
	Requests int `json:"requests" firestore:"requests"`
	Duration int `json:"duration" firestore:"duration"`
}

// APIKey is a user's third-party credential. Key holds the codec blob, never plaintext.
type APIKey struct {
	ID             string     `json:"id" firestore:"-"`
	UserID         string     `json:"userId" firestore:"userId"`
	Name           string     `json:"name" firestore:"name"`
	Key            string     `json:"-" firestore:"key"`
	ProviderName   string     `json:"providerName" firestore:"providerName"`
	FundingLink    string     `json:"fundingLink,omitempty" firestore:"fundingLink,omitempty"`
	Balance        float64    `json:"balance" firestore:"balance"`
	Active         bool       `json:"active" firestore:"active"`
	CreatedAt      time.Time  `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt      time.Time  `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
	LastUsedAt     *time.Time `json:"lastUsedAt" firestore:"lastUsedAt"`
	ExpiresAt      *time.Time `json:"expiresAt" firestore:"expiresAt"`
	AllowedOrigins []string   `json:"allowedOrigins" firestore:"allowedOrigins"`
	RateLimit      RateLimit  `json:"rateLimit" firestore:"rateLimit"`
}

// IsExpired reports whether the key has an expiry at or before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}
