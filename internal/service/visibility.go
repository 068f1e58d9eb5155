package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
)

type statusReader interface {
	GetStatus(ctx context.Context, viewerID, targetID string) (FollowStatusView, error)
}

// VisibilityResolver 判断 viewer 能否看到 owner 的受控内容，只读
type VisibilityResolver struct {
	profiles repository.ProfileRepository
	status   statusReader
}

func NewVisibilityResolver(profiles repository.ProfileRepository, status statusReader) *VisibilityResolver {
	return &VisibilityResolver{profiles: profiles, status: status}
}

// CanView 单一内容类型的可见性
func (r *VisibilityResolver) CanView(ctx context.Context, viewerID, ownerID string, kind ContentKind) (bool, error) {
	if !kind.Valid() {
		return false, invalid("unknown content kind %q", kind)
	}
	v, err := r.Resolve(ctx, viewerID, ownerID)
	if err != nil {
		return false, err
	}
	if kind == ContentSavedItems {
		return v.SavedItems, nil
	}
	return v.ProfilePosts, nil
}

// Resolve 一次性计算主页与各内容类型的可见性，关注状态最多查询一次
func (r *VisibilityResolver) Resolve(ctx context.Context, viewerID, ownerID string) (ProfileVisibility, error) {
	if ownerID == "" {
		return ProfileVisibility{}, invalid("owner user id is required")
	}
	if viewerID == ownerID {
		return ProfileVisibility{Profile: true, ProfilePosts: true, SavedItems: true}, nil
	}

	owner, err := r.profiles.Get(ctx, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProfileVisibility{}, ErrNotFound
	}
	if err != nil {
		return ProfileVisibility{}, transient("load owner profile", err)
	}
	return r.resolveFor(ctx, viewerID, owner)
}

func (r *VisibilityResolver) resolveFor(ctx context.Context, viewerID string, owner *model.Profile) (ProfileVisibility, error) {
	if viewerID == owner.UserID {
		return ProfileVisibility{Profile: true, ProfilePosts: true, SavedItems: true}, nil
	}
	following := false
	if needsFollow(owner) && viewerID != "" {
		st, err := r.status.GetStatus(ctx, viewerID, owner.UserID)
		if err != nil {
			return ProfileVisibility{}, err
		}
		following = st.IsFollowing
	}
	return visibilityFor(owner, viewerID, following), nil
}

func visibilityFor(owner *model.Profile, viewerID string, following bool) ProfileVisibility {
	self := viewerID != "" && viewerID == owner.UserID
	return ProfileVisibility{
		Profile:      Decide(owner, "", self, following),
		ProfilePosts: Decide(owner, ContentProfilePosts, self, following),
		SavedItems:   Decide(owner, ContentSavedItems, self, following),
	}
}

func needsFollow(owner *model.Profile) bool {
	return owner.IsPrivate || !owner.ReviewsPublic || !owner.SavedPublic
}

// Decide 可见性规则：本人总可见；否则内容开关与主页私密两道门都要通过，
// 任一门关闭时只有 accepted 关注者可见。kind 为空表示主页本身。
func Decide(owner *model.Profile, kind ContentKind, isSelf, isFollowing bool) bool {
	if isSelf {
		return true
	}
	open := !owner.IsPrivate
	switch kind {
	case ContentProfilePosts:
		open = open && owner.ReviewsPublic
	case ContentSavedItems:
		open = open && owner.SavedPublic
	}
	return open || isFollowing
}
