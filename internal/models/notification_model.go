package models

// Notification is a push message. Data values are passed to devices unchanged.
type Notification struct {
	Title string            `json:"title" binding:"required"`
	Body  string            `json:"body" binding:"required"`
	Data  map[string]string `json:"data,omitempty"`
}

// DispatchResult reports the outcome of a push dispatch.
type DispatchResult struct {
	Success      bool   `json:"success"`
	SuccessCount int    `json:"successCount"`
	FailureCount int    `json:"failureCount"`
	NoDevices    bool   `json:"noDevices,omitempty"`
	Error        string `json:"error,omitempty"`
}
