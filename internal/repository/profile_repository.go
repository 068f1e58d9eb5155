package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/tastegraph/internal/model"
)

type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]*model.Profile, error)
	Upsert(ctx context.Context, p *model.Profile) error
	UpdateSettings(ctx context.Context, userID string, s model.PrivacySettings) (*model.Profile, error)
	ListUserIDs(ctx context.Context, offset, limit int) ([]string, error)
	Search(ctx context.Context, query, excludeID string, offset, limit int) ([]*model.Profile, int64, error)
}

type profileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) ProfileRepository { return &profileRepository{db: db} }

// Get 不存在时返回 gorm.ErrRecordNotFound
func (r *profileRepository) Get(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*model.Profile, error) {
	res := make(map[string]*model.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return res, nil
	}
	var rows []*model.Profile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		res[p.UserID] = p
	}
	return res, nil
}

// Upsert 新建资料或只更新展示字段；隐私开关与计数不会被覆盖
func (r *profileRepository) Upsert(ctx context.Context, p *model.Profile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "full_name", "avatar_url", "bio", "updated_at"}),
	}).Create(p).Error
}

func (r *profileRepository) UpdateSettings(ctx context.Context, userID string, s model.PrivacySettings) (*model.Profile, error) {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if s.IsPrivate != nil {
		updates["is_private"] = *s.IsPrivate
	}
	if s.ReviewsPublic != nil {
		updates["reviews_public"] = *s.ReviewsPublic
	}
	if s.SavedPublic != nil {
		updates["saved_public"] = *s.SavedPublic
	}
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("user_id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.Get(ctx, userID)
}

func (r *profileRepository) ListUserIDs(ctx context.Context, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Order("user_id").
		Offset(offset).Limit(limit).
		Pluck("user_id", &ids).Error
	return ids, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Search 按 username / full_name / bio 子串匹配（不区分大小写），最新注册的在前；
// query 为空时列出全部。total 是不分页的匹配总数。
func (r *profileRepository) Search(ctx context.Context, query, excludeID string, offset, limit int) ([]*model.Profile, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Profile{})
	if excludeID != "" {
		q = q.Where("user_id <> ?", excludeID)
	}
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
		q = q.Where(`LOWER(username) LIKE ? ESCAPE '\' OR LOWER(full_name) LIKE ? ESCAPE '\' OR LOWER(bio) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []*model.Profile
	if total == 0 {
		return rows, 0, nil
	}
	err := q.Order("created_at DESC").Order("user_id").
		Offset(offset).Limit(limit).
		Find(&rows).Error
	return rows, total, err
}
