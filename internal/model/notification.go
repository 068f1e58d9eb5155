package model

import "time"

type NotificationType string

const (
	NotificationFollow         NotificationType = "follow"
	NotificationFollowRequest  NotificationType = "follow_request"
	NotificationFollowAccepted NotificationType = "follow_accepted"
)

// Notification 站内通知（按接收者切分）
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"type:varchar(36);index:idx_notification_user_created;not null" json:"user_id"`
	ActorID   string           `gorm:"type:varchar(36);not null" json:"actor_id"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	FollowID  string           `gorm:"type:varchar(36)" json:"follow_id,omitempty"`
	Message   string           `gorm:"type:varchar(512)" json:"message"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `gorm:"index:idx_notification_user_created" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
