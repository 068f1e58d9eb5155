package model

import (
	"time"
)

// FollowStatus 关注边状态；拒绝 / 取关直接删除记录，不存在软状态
type FollowStatus string

const (
	FollowStatusPending  FollowStatus = "pending"
	FollowStatusAccepted FollowStatus = "accepted"
)

// Follow 关注关系（A 关注 B）
type Follow struct {
	ID         string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FollowerID string       `gorm:"type:varchar(36);index:idx_follow_follower_status;index:idx_follow_pair,unique;not null" json:"follower_id"`
	FollowedID string       `gorm:"type:varchar(36);not null;index:idx_follow_pair,unique;index:idx_follow_followed_status" json:"followed_id"`
	// 复合唯一键，避免重复关注；并发 follow 的正确性依赖它而不是先查后插
	// idx_follow_pair = (follower_id, followed_id)
	Status     FollowStatus `gorm:"type:varchar(16);not null;index:idx_follow_follower_status;index:idx_follow_followed_status" json:"status"`
	CreatedAt  time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (Follow) TableName() string { return "follows" }

func (f *Follow) Accepted() bool { return f != nil && f.Status == FollowStatusAccepted }

func (f *Follow) Pending() bool { return f != nil && f.Status == FollowStatusPending }
