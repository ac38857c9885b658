package models

import "time"

// EventStatus mirrors the provider's event status.
type EventStatus string

const (
	StatusConfirmed EventStatus = "confirmed"
	StatusTentative EventStatus = "tentative"
	StatusCancelled EventStatus = "cancelled"
	StatusUnknown   EventStatus = "unknown"
)

// ParseEventStatus maps a provider status string, unknown values become StatusUnknown.
// An empty input stays empty (status absent).
func ParseEventStatus(s string) EventStatus {
	switch EventStatus(s) {
	case "":
		return ""
	case StatusConfirmed, StatusTentative, StatusCancelled:
		return EventStatus(s)
	default:
		return StatusUnknown
	}
}

// Event is a locally cached calendar event.
// StartDatetime/EndDatetime keep the provider's literal RFC 3339 text;
// StartAt/EndAt are the same instants in UTC and back all range queries.
type Event struct {
	ID            string `gorm:"primaryKey"` // provider event id
	Summary       string
	Description   string
	Status        EventStatus
	HangoutLink   string
	ZoomLink      string
	TeamsLink     string
	StartDatetime string
	EndDatetime   string
	StartAt       time.Time `gorm:"index"`
	EndAt         time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Notification Notification `gorm:"foreignKey:EventID;references:ID;constraint:OnDelete:CASCADE"`
}

// Notification is the per-event alert setting, 1:1 with Event.
type Notification struct {
	EventID     string `gorm:"primaryKey"`
	Enabled     bool
	LeadSeconds int // seconds before start at which the alert becomes due
	UpdatedAt   time.Time
}

// EventUpdate holds the provider-owned columns of an event.
// Applying it overwrites all of them and never touches the notification.
type EventUpdate struct {
	Summary       string
	Description   string
	Status        EventStatus
	HangoutLink   string
	ZoomLink      string
	TeamsLink     string
	StartDatetime string
	EndDatetime   string
	StartAt       time.Time
	EndAt         time.Time
}

// NotificationUpdate changes user-owned notification settings; nil fields are left as is.
type NotificationUpdate struct {
	Enabled     *bool
	LeadSeconds *int
}

// Lead returns the notification lead time as a duration.
func (n Notification) Lead() time.Duration {
	return time.Duration(n.LeadSeconds) * time.Second
}
