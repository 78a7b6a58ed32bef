package domain

import "time"

type NotificationType string

const (
	NotificationOrder  NotificationType = "ORDER"
	NotificationSystem NotificationType = "SYSTEM"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	EventID   string           `json:"-"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Link      string           `json:"link"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}
