package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/pkg/logger"
)

// ProfileInput 本人可编辑的展示字段
type ProfileInput struct {
	Username  string `json:"username" binding:"required,min=3,max=64"`
	FullName  string `json:"full_name" binding:"max=128"`
	AvatarURL string `json:"avatar_url" binding:"omitempty,url,max=512"`
	Bio       string `json:"bio" binding:"max=1000"`
}

type ProfileService interface {
	GetProfile(ctx context.Context, viewerID, userID string) (*ProfileView, error)
	UpsertOwnProfile(ctx context.Context, callerID string, in ProfileInput) (*model.Profile, error)
	UpdateSettings(ctx context.Context, callerID string, s model.PrivacySettings) (*model.Profile, error)
}

type profileService struct {
	profiles repository.ProfileRepository
	follows  FollowService
}

func NewProfileService(profiles repository.ProfileRepository, follows FollowService) ProfileService {
	return &profileService{profiles: profiles, follows: follows}
}

func (s *profileService) GetProfile(ctx context.Context, viewerID, userID string) (*ProfileView, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("load profile", err)
	}
	st, err := s.follows.GetStatus(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{Profile: p, Status: st, Visibility: visibilityFor(p, viewerID, st.IsFollowing)}, nil
}

func (s *profileService) UpsertOwnProfile(ctx context.Context, callerID string, in ProfileInput) (*model.Profile, error) {
	if callerID == "" {
		return nil, ErrUnauthorized
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, invalid("username is required")
	}
	p := model.NewProfile(callerID, username)
	p.FullName = strings.TrimSpace(in.FullName)
	p.AvatarURL = strings.TrimSpace(in.AvatarURL)
	p.Bio = strings.TrimSpace(in.Bio)

	if err := s.profiles.Upsert(ctx, p); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalid("username %q is already taken", username)
		}
		return nil, transient("upsert profile", err)
	}
	out, err := s.profiles.Get(ctx, callerID)
	if err != nil {
		return nil, transient("reload profile", err)
	}
	return out, nil
}

// UpdateSettings 修改隐私开关。转为公开不会自动通过已有的 pending 请求。
func (s *profileService) UpdateSettings(ctx context.Context, callerID string, settings model.PrivacySettings) (*model.Profile, error) {
	if callerID == "" {
		return nil, ErrUnauthorized
	}
	if settings.Empty() {
		return nil, invalid("no settings to update")
	}
	p, err := s.profiles.UpdateSettings(ctx, callerID, settings)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, transient("update settings", err)
	}
	logger.Info("privacy settings updated", zap.String("user", callerID),
		zap.Bool("is_private", p.IsPrivate), zap.Bool("reviews_public", p.ReviewsPublic), zap.Bool("saved_public", p.SavedPublic))
	return p, nil
}
