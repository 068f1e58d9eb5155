package service

import (
	"time"

	"github.com/d60-Lab/tastegraph/internal/model"
)

// FollowStatusView viewer 与 target 之间某一时刻的关系视图，不落库
type FollowStatusView struct {
	IsFollowing  bool `json:"is_following"`
	IsPending    bool `json:"is_pending"`
	IsFollowedBy bool `json:"is_followed_by"`
	IsMutual     bool `json:"is_mutual"`
	IsSelf       bool `json:"is_self"`
}

// 列表中每一项对当前查看者的按钮状态
const (
	ViewerSelf      = "self"
	ViewerFollowing = "following"
	ViewerRequested = "requested"
	ViewerNone      = "none"
)

type ProfileSummary struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

func summarize(userID string, p *model.Profile) ProfileSummary {
	if p == nil {
		return ProfileSummary{UserID: userID}
	}
	return ProfileSummary{UserID: p.UserID, Username: p.Username, FullName: p.FullName, AvatarURL: p.AvatarURL}
}

type FollowEntry struct {
	ProfileSummary
	FollowedAt   time.Time `json:"followed_at"`
	ViewerStatus string    `json:"viewer_status,omitempty"`
}

// UserEntry 用户搜索结果的一项
type UserEntry struct {
	ProfileSummary
	Bio          string `json:"bio"`
	IsPrivate    bool   `json:"is_private"`
	ViewerStatus string `json:"viewer_status,omitempty"`
}

type UserSearchResult struct {
	Total int64       `json:"total"`
	List  []UserEntry `json:"list"`
}

type PendingRequest struct {
	RequestID string         `json:"request_id"`
	Requester ProfileSummary `json:"requester"`
	CreatedAt time.Time      `json:"created_at"`
}

type RespondResult struct {
	OK        bool   `json:"ok"`
	NewStatus string `json:"new_status"`
}

// ContentKind 受可见性控制的内容类型
type ContentKind string

const (
	ContentProfilePosts ContentKind = "profile_posts"
	ContentSavedItems   ContentKind = "saved_items"
)

func (k ContentKind) Valid() bool {
	return k == ContentProfilePosts || k == ContentSavedItems
}

type ProfileVisibility struct {
	Profile      bool `json:"profile"`
	ProfilePosts bool `json:"profile_posts"`
	SavedItems   bool `json:"saved_items"`
}

type ProfileView struct {
	Profile    *model.Profile    `json:"profile"`
	Status     FollowStatusView  `json:"status"`
	Visibility ProfileVisibility `json:"visibility"`
}
