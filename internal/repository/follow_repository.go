package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/tastegraph/internal/model"
)

// ErrDuplicateEdge 唯一键 idx_follow_pair 命中，说明该有序对已存在关注边
var ErrDuplicateEdge = errors.New("follow edge already exists")

// Counts 冗余计数快照
type Counts struct {
	Followers int64 `json:"followers_count"`
	Following int64 `json:"following_count"`
}

// FollowRepository 关注边存储。计数字段只在这里的事务内修改，边与计数同事务提交。
type FollowRepository interface {
	Get(ctx context.Context, id string) (*model.Follow, error)
	GetPair(ctx context.Context, followerID, followedID string) (*model.Follow, error)
	// GetPairs 一次查询 a->b 与 b->a 两个方向，不存在的方向返回 nil
	GetPairs(ctx context.Context, a, b string) (ab *model.Follow, ba *model.Follow, err error)
	CreateEdge(ctx context.Context, edge *model.Follow) error
	DeleteEdge(ctx context.Context, followerID, followedID string) (*model.Follow, error)
	AcceptPending(ctx context.Context, id, ownerID string, at time.Time) (*model.Follow, error)
	DeclinePending(ctx context.Context, id, ownerID string) (*model.Follow, error)
	ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.Follow, error)
	ListFollowings(ctx context.Context, userID string, offset, limit int) ([]*model.Follow, error)
	ListPending(ctx context.Context, ownerID string) ([]*model.Follow, error)
	// StatusesFrom followerID 指向 targetIDs 的边状态（含 pending），无边的目标不出现在结果里
	StatusesFrom(ctx context.Context, followerID string, targetIDs []string) (map[string]model.FollowStatus, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	CountAccepted(ctx context.Context, userID string) (Counts, error)
	ReconcileCounts(ctx context.Context, userID string) (before Counts, after Counts, err error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository { return &followRepository{db: db} }

func (r *followRepository) Get(ctx context.Context, id string) (*model.Follow, error) {
	var f model.Follow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *followRepository) GetPair(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	var f model.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *followRepository) GetPairs(ctx context.Context, a, b string) (*model.Follow, *model.Follow, error) {
	var rows []*model.Follow
	err := r.db.WithContext(ctx).
		Where("(follower_id = ? AND followed_id = ?) OR (follower_id = ? AND followed_id = ?)", a, b, b, a).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	var ab, ba *model.Follow
	for _, f := range rows {
		if f.FollowerID == a {
			ab = f
		} else {
			ba = f
		}
	}
	return ab, ba, nil
}

// CreateEdge 插入关注边；accepted 状态同时递增双方计数
func (r *followRepository) CreateEdge(ctx context.Context, edge *model.Follow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEdge
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDuplicateEdge
		}
		if edge.Accepted() {
			return bumpCounts(tx, edge.FollowerID, edge.FollowedID, 1)
		}
		return nil
	})
}

// DeleteEdge 删除 follower->followed 边（pending 或 accepted）。不存在时返回 nil, nil。
func (r *followRepository) DeleteEdge(ctx context.Context, followerID, followedID string) (*model.Follow, error) {
	var removed *model.Follow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var f model.Follow
		err := tx.Where("follower_id = ? AND followed_id = ?", followerID, followedID).First(&f).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", f.ID, f.Status).Delete(&model.Follow{})
		if res.Error != nil {
			return res.Error
		}
		// 并发请求已删除或已改状态
		if res.RowsAffected == 0 {
			return nil
		}
		if f.Accepted() {
			if err := bumpCounts(tx, f.FollowerID, f.FollowedID, -1); err != nil {
				return err
			}
		}
		removed = &f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// AcceptPending pending -> accepted，要求该请求发给 ownerID。找不到返回 gorm.ErrRecordNotFound。
func (r *followRepository) AcceptPending(ctx context.Context, id, ownerID string, at time.Time) (*model.Follow, error) {
	var f model.Follow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND followed_id = ? AND status = ?", id, ownerID, model.FollowStatusPending).First(&f).Error; err != nil {
			return err
		}
		res := tx.Model(&model.Follow{}).
			Where("id = ? AND status = ?", id, model.FollowStatusPending).
			Updates(map[string]any{"status": model.FollowStatusAccepted, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		f.Status = model.FollowStatusAccepted
		f.UpdatedAt = at
		return bumpCounts(tx, f.FollowerID, f.FollowedID, 1)
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// DeclinePending 删除发给 ownerID 的 pending 请求；pending 从未计数，计数不变
func (r *followRepository) DeclinePending(ctx context.Context, id, ownerID string) (*model.Follow, error) {
	var f model.Follow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND followed_id = ? AND status = ?", id, ownerID, model.FollowStatusPending).First(&f).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND status = ?", id, model.FollowStatusPending).Delete(&model.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *followRepository) ListFollowers(ctx context.Context, userID string, offset, limit int) ([]*model.Follow, error) {
	var res []*model.Follow
	err := r.db.WithContext(ctx).
		Where("followed_id = ? AND status = ?", userID, model.FollowStatusAccepted).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *followRepository) ListFollowings(ctx context.Context, userID string, offset, limit int) ([]*model.Follow, error) {
	var res []*model.Follow
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND status = ?", userID, model.FollowStatusAccepted).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}

func (r *followRepository) ListPending(ctx context.Context, ownerID string) ([]*model.Follow, error) {
	var res []*model.Follow
	err := r.db.WithContext(ctx).
		Where("followed_id = ? AND status = ?", ownerID, model.FollowStatusPending).
		Order("created_at DESC").Order("id DESC").
		Find(&res).Error
	return res, err
}

func (r *followRepository) StatusesFrom(ctx context.Context, followerID string, targetIDs []string) (map[string]model.FollowStatus, error) {
	res := make(map[string]model.FollowStatus, len(targetIDs))
	if followerID == "" || len(targetIDs) == 0 {
		return res, nil
	}
	var rows []*model.Follow
	if err := r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id IN ?", followerID, targetIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, f := range rows {
		res[f.FollowedID] = f.Status
	}
	return res, nil
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("followed_id = ? AND status = ?", userID, model.FollowStatusAccepted).
		Order("created_at DESC").Order("id DESC").
		Pluck("follower_id", &ids).Error
	return ids, err
}

func (r *followRepository) FollowingIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Follow{}).
		Where("follower_id = ? AND status = ?", userID, model.FollowStatusAccepted).
		Order("created_at DESC").Order("id DESC").
		Pluck("followed_id", &ids).Error
	return ids, err
}

func (r *followRepository) CountAccepted(ctx context.Context, userID string) (Counts, error) {
	return countAccepted(r.db.WithContext(ctx), userID)
}

// ReconcileCounts 以 follows 表重算冗余计数，可重复调用
func (r *followRepository) ReconcileCounts(ctx context.Context, userID string) (Counts, Counts, error) {
	var before, after Counts
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Profile
		if err := tx.Where("user_id = ?", userID).First(&p).Error; err != nil {
			return err
		}
		before = Counts{Followers: p.FollowersCount, Following: p.FollowingCount}
		c, err := countAccepted(tx, userID)
		if err != nil {
			return err
		}
		after = c
		if before == after {
			return nil
		}
		return tx.Model(&model.Profile{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{"followers_count": c.Followers, "following_count": c.Following}).Error
	})
	return before, after, err
}

func countAccepted(db *gorm.DB, userID string) (Counts, error) {
	var c Counts
	if err := db.Model(&model.Follow{}).
		Where("followed_id = ? AND status = ?", userID, model.FollowStatusAccepted).
		Count(&c.Followers).Error; err != nil {
		return c, err
	}
	if err := db.Model(&model.Follow{}).
		Where("follower_id = ? AND status = ?", userID, model.FollowStatusAccepted).
		Count(&c.Following).Error; err != nil {
		return c, err
	}
	return c, nil
}

// bumpCounts follower.following_count 与 followed.followers_count 同步加减 delta，不会减到负数
func bumpCounts(tx *gorm.DB, followerID, followedID string, delta int) error {
	if err := tx.Model(&model.Profile{}).
		Where("user_id = ?", followedID).
		Update("followers_count", counterExpr("followers_count", delta)).Error; err != nil {
		return err
	}
	return tx.Model(&model.Profile{}).
		Where("user_id = ?", followerID).
		Update("following_count", counterExpr("following_count", delta)).Error
}

func counterExpr(column string, delta int) clause.Expr {
	if delta >= 0 {
		return gorm.Expr(column+" + ?", delta)
	}
	return gorm.Expr("CASE WHEN "+column+" >= ? THEN "+column+" - ? ELSE 0 END", -delta, -delta)
}
