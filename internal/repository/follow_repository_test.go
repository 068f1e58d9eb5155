package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/testutil"
)

func newEdge(follower, followed string, status model.FollowStatus, at time.Time) *model.Follow {
	return &model.Follow{ID: uuid.NewString(), FollowerID: follower, FollowedID: followed, Status: status, CreatedAt: at, UpdatedAt: at}
}

func loadCounts(t *testing.T, db *gorm.DB, userID string) Counts {
	t.Helper()
	var p model.Profile
	require.NoError(t, db.Where("user_id = ?", userID).First(&p).Error)
	return Counts{Followers: p.FollowersCount, Following: p.FollowingCount}
}

func TestCreateEdge_UniquePair(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	testutil.SeedProfile(t, db, "a", false)
	testutil.SeedProfile(t, db, "b", false)

	now := time.Now()
	require.NoError(t, repo.CreateEdge(ctx, newEdge("a", "b", model.FollowStatusAccepted, now)))
	err := repo.CreateEdge(ctx, newEdge("a", "b", model.FollowStatusPending, now))
	assert.ErrorIs(t, err, ErrDuplicateEdge)

	var cnt int64
	require.NoError(t, db.Model(&model.Follow{}).Where("follower_id = ? AND followed_id = ?", "a", "b").Count(&cnt).Error)
	assert.Equal(t, int64(1), cnt)

	// 失败的插入不应改计数
	assert.Equal(t, Counts{Followers: 1}, loadCounts(t, db, "b"))
	assert.Equal(t, Counts{Following: 1}, loadCounts(t, db, "a"))

	// 反方向是另一个有序对
	require.NoError(t, repo.CreateEdge(ctx, newEdge("b", "a", model.FollowStatusAccepted, now)))
}

func TestCreateEdge_PendingNotCounted(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	testutil.SeedProfile(t, db, "a", false)
	testutil.SeedProfile(t, db, "b", true)

	require.NoError(t, repo.CreateEdge(ctx, newEdge("a", "b", model.FollowStatusPending, time.Now())))
	assert.Equal(t, Counts{}, loadCounts(t, db, "a"))
	assert.Equal(t, Counts{}, loadCounts(t, db, "b"))
}

func TestAcceptAndDeclinePending(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	testutil.SeedProfile(t, db, "a", false)
	testutil.SeedProfile(t, db, "b", true)
	testutil.SeedProfile(t, db, "c", false)

	e := newEdge("a", "b", model.FollowStatusPending, time.Now().Add(-time.Hour))
	require.NoError(t, repo.CreateEdge(ctx, e))

	// 只有接收者能处理
	_, err := repo.AcceptPending(ctx, e.ID, "c", time.Now())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.DeclinePending(ctx, e.ID, "a")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	at := time.Now().UTC().Truncate(time.Second)
	got, err := repo.AcceptPending(ctx, e.ID, "b", at)
	require.NoError(t, err)
	assert.Equal(t, model.FollowStatusAccepted, got.Status)
	assert.Equal(t, Counts{Followers: 1}, loadCounts(t, db, "b"))
	assert.Equal(t, Counts{Following: 1}, loadCounts(t, db, "a"))

	// 已 accepted 的请求不能再次处理
	_, err = repo.AcceptPending(ctx, e.ID, "b", at)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.DeclinePending(ctx, e.ID, "b")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	e2 := newEdge("c", "b", model.FollowStatusPending, time.Now())
	require.NoError(t, repo.CreateEdge(ctx, e2))
	removed, err := repo.DeclinePending(ctx, e2.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, "c", removed.FollowerID)
	pair, err := repo.GetPair(ctx, "c", "b")
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, Counts{Followers: 1}, loadCounts(t, db, "b"))
}

func TestDeleteEdge(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	testutil.SeedProfile(t, db, "a", false)
	testutil.SeedProfile(t, db, "b", false)

	removed, err := repo.DeleteEdge(ctx, "a", "b")
	require.NoError(t, err)
	assert.Nil(t, removed)

	require.NoError(t, repo.CreateEdge(ctx, newEdge("a", "b", model.FollowStatusAccepted, time.Now())))
	removed, err = repo.DeleteEdge(ctx, "a", "b")
	require.NoError(t, err)
	require.NotNil(t, removed)
	assert.Equal(t, model.FollowStatusAccepted, removed.Status)
	assert.Equal(t, Counts{}, loadCounts(t, db, "a"))
	assert.Equal(t, Counts{}, loadCounts(t, db, "b"))

	// 计数不会变成负数
	require.NoError(t, db.Model(&model.Profile{}).Where("user_id = ?", "b").Update("followers_count", 0).Error)
	require.NoError(t, db.Create(newEdge("a", "b", model.FollowStatusAccepted, time.Now())).Error)
	_, err = repo.DeleteEdge(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loadCounts(t, db, "b").Followers)
}

func TestListOrdering(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	for _, id := range []string{"u", "f1", "f2", "f3", "f4"} {
		testutil.SeedProfile(t, db, id, false)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tie := base.Add(time.Hour)
	edges := []*model.Follow{
		{ID: "00000000-0000-0000-0000-000000000001", FollowerID: "f1", FollowedID: "u", Status: model.FollowStatusAccepted, CreatedAt: base},
		{ID: "00000000-0000-0000-0000-000000000002", FollowerID: "f2", FollowedID: "u", Status: model.FollowStatusAccepted, CreatedAt: tie},
		{ID: "00000000-0000-0000-0000-000000000003", FollowerID: "f3", FollowedID: "u", Status: model.FollowStatusAccepted, CreatedAt: tie},
		{ID: "00000000-0000-0000-0000-000000000004", FollowerID: "f4", FollowedID: "u", Status: model.FollowStatusPending, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, e := range edges {
		require.NoError(t, repo.CreateEdge(ctx, e))
	}

	list, err := repo.ListFollowers(ctx, "u", 0, 10)
	require.NoError(t, err)
	got := make([]string, len(list))
	for i, f := range list {
		got[i] = f.FollowerID
	}
	// pending 不出现；同一时间按 id 倒序
	assert.Equal(t, []string{"f3", "f2", "f1"}, got)

	ids, err := repo.FollowerIDs(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"f3", "f2", "f1"}, ids)

	page2, err := repo.ListFollowers(ctx, "u", 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "f1", page2[0].FollowerID)

	following, err := repo.FollowingIDs(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, following)

	pending, err := repo.ListPending(ctx, "u")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "f4", pending[0].FollowerID)
}

func TestGetPairs(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	testutil.SeedProfile(t, db, "a", false)
	testutil.SeedProfile(t, db, "b", true)

	require.NoError(t, repo.CreateEdge(ctx, newEdge("a", "b", model.FollowStatusPending, time.Now())))
	require.NoError(t, repo.CreateEdge(ctx, newEdge("b", "a", model.FollowStatusAccepted, time.Now())))

	ab, ba, err := repo.GetPairs(ctx, "a", "b")
	require.NoError(t, err)
	require.NotNil(t, ab)
	require.NotNil(t, ba)
	assert.True(t, ab.Pending())
	assert.True(t, ba.Accepted())

	ab, ba, err = repo.GetPairs(ctx, "a", "zzz")
	require.NoError(t, err)
	assert.Nil(t, ab)
	assert.Nil(t, ba)
}

func TestReconcileCounts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	testutil.SeedProfile(t, db, "a", false)
	testutil.SeedProfile(t, db, "b", false)
	testutil.SeedProfile(t, db, "c", false)

	require.NoError(t, repo.CreateEdge(ctx, newEdge("a", "b", model.FollowStatusAccepted, time.Now())))
	require.NoError(t, repo.CreateEdge(ctx, newEdge("c", "b", model.FollowStatusAccepted, time.Now())))
	require.NoError(t, repo.CreateEdge(ctx, newEdge("b", "a", model.FollowStatusAccepted, time.Now())))

	// 制造漂移
	require.NoError(t, db.Model(&model.Profile{}).Where("user_id = ?", "b").
		Updates(map[string]any{"followers_count": 42, "following_count": 0}).Error)

	before, after, err := repo.ReconcileCounts(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, Counts{Followers: 42}, before)
	assert.Equal(t, Counts{Followers: 2, Following: 1}, after)
	assert.Equal(t, after, loadCounts(t, db, "b"))

	// 幂等
	before, after, err = repo.ReconcileCounts(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, _, err = repo.ReconcileCounts(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestStatusesFrom(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()
	for _, id := range []string{"v", "x", "y", "z"} {
		testutil.SeedProfile(t, db, id, id == "y")
	}
	require.NoError(t, repo.CreateEdge(ctx, newEdge("v", "x", model.FollowStatusAccepted, time.Now())))
	require.NoError(t, repo.CreateEdge(ctx, newEdge("v", "y", model.FollowStatusPending, time.Now())))
	require.NoError(t, repo.CreateEdge(ctx, newEdge("z", "v", model.FollowStatusAccepted, time.Now())))

	got, err := repo.StatusesFrom(ctx, "v", []string{"x", "y", "z"})
	require.NoError(t, err)
	assert.Equal(t, map[string]model.FollowStatus{"x": model.FollowStatusAccepted, "y": model.FollowStatusPending}, got)

	got, err = repo.StatusesFrom(ctx, "", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
