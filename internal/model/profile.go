package model

import "time"

// Profile 用户资料中与关系链相关的部分
// followers_count / following_count 是冗余计数，以 follows 表为准，可随时重算
type Profile struct {
	UserID         string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Username       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	FullName       string    `gorm:"type:varchar(128)" json:"full_name"`
	AvatarURL      string    `gorm:"type:varchar(512)" json:"avatar_url"`
	Bio            string    `gorm:"type:text" json:"bio"`
	IsPrivate      bool      `gorm:"not null;default:false" json:"is_private"`
	ReviewsPublic  bool      `gorm:"not null" json:"reviews_public"`
	SavedPublic    bool      `gorm:"not null" json:"saved_public"`
	FollowersCount int64     `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int64     `gorm:"not null;default:0" json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// DisplayName 优先使用全名
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// PrivacySettings 可由本人修改的可见性开关
type PrivacySettings struct {
	IsPrivate     *bool `json:"is_private"`
	ReviewsPublic *bool `json:"reviews_public"`
	SavedPublic   *bool `json:"saved_public"`
}

func (s PrivacySettings) Empty() bool {
	return s.IsPrivate == nil && s.ReviewsPublic == nil && s.SavedPublic == nil
}

// NewProfile 带默认可见性的资料：公开主页、评价公开、收藏私密
func NewProfile(userID, username string) *Profile {
	return &Profile{UserID: userID, Username: username, ReviewsPublic: true}
}
