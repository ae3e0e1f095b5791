package models

import "time"

type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
)

type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusNew, AlertStatusAcknowledged, AlertStatusResolved:
		return true
	}
	return false
}

// AlertActivity is the slice of an activity log embedded in an alert.
type AlertActivity struct {
	Type      ActivityType `json:"type" firestore:"type"`
	Timestamp time.Time    `json:"timestamp" firestore:"timestamp"`
	IPAddress string       `json:"ipAddress,omitempty" firestore:"ipAddress,omitempty"`
}

type AlertDetails struct {
	RecentActivities []AlertActivity `json:"recentActivities" firestore:"recentActivities"`
}

// SecurityAlert is raised when a detection pattern crosses its threshold.
// Alerts are never deleted; only Status changes.
type SecurityAlert struct {
	ID            string        `json:"id" firestore:"-"`
	UserID        string        `json:"userId" firestore:"userId"`
	Type          string        `json:"type" firestore:"type"`
	Severity      AlertSeverity `json:"severity" firestore:"severity"`
	Timestamp     time.Time     `json:"timestamp" firestore:"timestamp,serverTimestamp"`
	ActivityCount int           `json:"activityCount" firestore:"activityCount"`
	Status        AlertStatus   `json:"status" firestore:"status"`
	Details       AlertDetails  `json:"details" firestore:"details"`
}
