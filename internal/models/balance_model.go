package models

// BalanceRequest carries the credentials forwarded to the usage API.
// OrganizationID is only used by the organization variant.
type BalanceRequest struct {
	APIKey         string `json:"apiKey"`
	OrganizationID string `json:"organizationId,omitempty"`
}

const (
	BalanceStatusSuccess = "success"
	BalanceStatusError   = "error"
)

// BalanceResponse is the normalized envelope returned by both balance endpoints.
// Balance is null on error.
type BalanceResponse struct {
	Balance *float64 `json:"balance"`
	Error   string   `json:"error,omitempty"`
	Status  string   `json:"status"`
}
