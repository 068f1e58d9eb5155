package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/tastegraph/internal/cache"
	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/pkg/logger"
)

const maxPageSize = 100

const maxSearchLen = 100

// FollowService 关注状态机：none -> pending -> accepted，以及基于边的查询。
// 关注计数只经由这里调用的仓储事务修改。
type FollowService interface {
	Follow(ctx context.Context, actorID, targetID string) (model.FollowStatus, error)
	Unfollow(ctx context.Context, actorID, targetID string) error
	RemoveFollower(ctx context.Context, ownerID, followerID string) error
	RespondToRequest(ctx context.Context, ownerID, requestID string, accept bool) (RespondResult, error)
	GetStatus(ctx context.Context, viewerID, targetID string) (FollowStatusView, error)
	ListFollowers(ctx context.Context, userID, viewerID string, page, pageSize int) ([]FollowEntry, error)
	ListFollowing(ctx context.Context, userID, viewerID string, page, pageSize int) ([]FollowEntry, error)
	ListMutual(ctx context.Context, userID string) ([]ProfileSummary, error)
	ListPendingRequests(ctx context.Context, ownerID string) ([]PendingRequest, error)
	ReconcileCounts(ctx context.Context, userID string) (repository.Counts, error)
	SearchUsers(ctx context.Context, viewerID, query string, page, pageSize int) (UserSearchResult, error)
}

type followService struct {
	followRepo  repository.FollowRepository
	profileRepo repository.ProfileRepository
	cache       *cache.RelationCache
	notifier    *Notifier
}

func NewFollowService(followRepo repository.FollowRepository, profileRepo repository.ProfileRepository, relCache *cache.RelationCache, notifier *Notifier) FollowService {
	return &followService{followRepo: followRepo, profileRepo: profileRepo, cache: relCache, notifier: notifier}
}

func (s *followService) Follow(ctx context.Context, actorID, targetID string) (model.FollowStatus, error) {
	if actorID == "" {
		return "", ErrUnauthorized
	}
	if targetID == "" {
		return "", invalid("target user id is required")
	}
	if actorID == targetID {
		return "", ErrSelfFollowForbidden
	}

	target, err := s.profileRepo.Get(ctx, targetID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrTargetNotFound
	}
	if err != nil {
		return "", transient("load target profile", err)
	}

	// 快速路径；并发下由唯一键 idx_follow_pair 兜底
	existing, err := s.followRepo.GetPair(ctx, actorID, targetID)
	if err != nil {
		return "", transient("check existing follow", err)
	}
	if existing != nil {
		return "", ErrAlreadyFollowingOrPending
	}

	status := model.FollowStatusAccepted
	if target.IsPrivate {
		status = model.FollowStatusPending
	}
	now := time.Now().UTC()
	edge := &model.Follow{ID: uuid.New().String(), FollowerID: actorID, FollowedID: targetID, Status: status, CreatedAt: now, UpdatedAt: now}
	if err := s.followRepo.CreateEdge(ctx, edge); err != nil {
		if errors.Is(err, repository.ErrDuplicateEdge) {
			return "", ErrAlreadyFollowingOrPending
		}
		return "", transient("create follow", err)
	}

	s.invalidate(ctx, actorID, targetID)
	if s.notifier != nil {
		if status == model.FollowStatusPending {
			s.notifier.Enqueue(model.NotificationFollowRequest, targetID, actorID, edge.ID)
		} else {
			s.notifier.Enqueue(model.NotificationFollow, targetID, actorID, edge.ID)
		}
	}
	logger.Info("follow created", zap.String("follower", actorID), zap.String("followed", targetID), zap.String("status", string(status)))
	return status, nil
}

// Unfollow 删除 actor->target 边，pending（撤回请求）与 accepted 同样处理；无边时不报错
func (s *followService) Unfollow(ctx context.Context, actorID, targetID string) error {
	if actorID == "" {
		return ErrUnauthorized
	}
	if targetID == "" {
		return invalid("target user id is required")
	}
	return s.removeEdge(ctx, actorID, targetID)
}

// RemoveFollower 被关注者移除自己的粉丝（或撤销其 pending 请求）
func (s *followService) RemoveFollower(ctx context.Context, ownerID, followerID string) error {
	if ownerID == "" {
		return ErrUnauthorized
	}
	if followerID == "" {
		return invalid("follower user id is required")
	}
	return s.removeEdge(ctx, followerID, ownerID)
}

func (s *followService) removeEdge(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return nil
	}
	removed, err := s.followRepo.DeleteEdge(ctx, followerID, followedID)
	if err != nil {
		return transient("delete follow", err)
	}
	if removed == nil {
		return nil
	}
	s.invalidate(ctx, followerID, followedID)
	logger.Info("follow removed", zap.String("follower", followerID), zap.String("followed", followedID), zap.String("status", string(removed.Status)))
	return nil
}

func (s *followService) RespondToRequest(ctx context.Context, ownerID, requestID string, accept bool) (RespondResult, error) {
	if ownerID == "" {
		return RespondResult{}, ErrUnauthorized
	}
	if requestID == "" {
		return RespondResult{}, invalid("request id is required")
	}

	if accept {
		f, err := s.followRepo.AcceptPending(ctx, requestID, ownerID, time.Now().UTC())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RespondResult{}, ErrRequestNotFound
		}
		if err != nil {
			return RespondResult{}, transient("accept follow request", err)
		}
		s.invalidate(ctx, f.FollowerID, f.FollowedID)
		if s.notifier != nil {
			s.notifier.Enqueue(model.NotificationFollowAccepted, f.FollowerID, ownerID, f.ID)
		}
		return RespondResult{OK: true, NewStatus: string(model.FollowStatusAccepted)}, nil
	}

	f, err := s.followRepo.DeclinePending(ctx, requestID, ownerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RespondResult{}, ErrRequestNotFound
	}
	if err != nil {
		return RespondResult{}, transient("decline follow request", err)
	}
	s.invalidate(ctx, f.FollowerID, f.FollowedID)
	return RespondResult{OK: true, NewStatus: ViewerNone}, nil
}

// GetStatus 未登录查看者得到全 false 视图；查看自己时不访问存储
func (s *followService) GetStatus(ctx context.Context, viewerID, targetID string) (FollowStatusView, error) {
	if targetID == "" {
		return FollowStatusView{}, invalid("target user id is required")
	}
	if viewerID == "" {
		return FollowStatusView{}, nil
	}
	if viewerID == targetID {
		return FollowStatusView{IsSelf: true}, nil
	}

	out, in, err := s.edgeStatuses(ctx, viewerID, targetID)
	if err != nil {
		return FollowStatusView{}, err
	}
	v := FollowStatusView{
		IsFollowing:  out == string(model.FollowStatusAccepted),
		IsPending:    out == string(model.FollowStatusPending),
		IsFollowedBy: in == string(model.FollowStatusAccepted),
	}
	v.IsMutual = v.IsFollowing && v.IsFollowedBy
	return v, nil
}

// edgeStatuses 返回 a->b、b->a 的状态（pending / accepted / none），先查缓存
func (s *followService) edgeStatuses(ctx context.Context, a, b string) (string, string, error) {
	ab, okAB, errAB := s.cache.EdgeStatus(ctx, a, b)
	ba, okBA, errBA := s.cache.EdgeStatus(ctx, b, a)
	if errAB == nil && errBA == nil && okAB && okBA {
		return ab, ba, nil
	}
	if err := errors.Join(errAB, errBA); err != nil {
		logger.Warn("relation cache read failed", zap.Error(err))
	}

	// 版本号必须在读库之前取，读库后发生的失效会让回填作废
	ver, verErr := s.cache.PairVersion(ctx, a, b)
	fab, fba, err := s.followRepo.GetPairs(ctx, a, b)
	if err != nil {
		return "", "", transient("load follow status", err)
	}
	ab, ba = edgeState(fab), edgeState(fba)
	if verErr == nil {
		verErr = s.cache.SetEdgeStatuses(ctx, a, b, ab, ba, ver)
	}
	if verErr != nil {
		logger.Warn("relation cache write failed", zap.Error(verErr))
	}
	return ab, ba, nil
}

func edgeState(f *model.Follow) string {
	if f == nil {
		return cache.EdgeNone
	}
	return string(f.Status)
}

func (s *followService) ListFollowers(ctx context.Context, userID, viewerID string, page, pageSize int) ([]FollowEntry, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	offset, limit := paginate(page, pageSize)
	edges, err := s.followRepo.ListFollowers(ctx, userID, offset, limit)
	if err != nil {
		return nil, transient("list followers", err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return s.entries(ctx, edges, ids, viewerID)
}

func (s *followService) ListFollowing(ctx context.Context, userID, viewerID string, page, pageSize int) ([]FollowEntry, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	offset, limit := paginate(page, pageSize)
	edges, err := s.followRepo.ListFollowings(ctx, userID, offset, limit)
	if err != nil {
		return nil, transient("list following", err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowedID
	}
	return s.entries(ctx, edges, ids, viewerID)
}

// entries 按 edges 顺序组装列表项；ids[i] 是 edges[i] 中“另一方”的用户
func (s *followService) entries(ctx context.Context, edges []*model.Follow, ids []string, viewerID string) ([]FollowEntry, error) {
	profiles, err := s.profileRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, transient("load profiles", err)
	}
	viewerEdges, err := s.viewerEdges(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	res := make([]FollowEntry, len(edges))
	for i, e := range edges {
		res[i] = FollowEntry{
			ProfileSummary: summarize(ids[i], profiles[ids[i]]),
			FollowedAt:     e.CreatedAt,
			ViewerStatus:   viewerStatus(viewerID, ids[i], viewerEdges),
		}
	}
	return res, nil
}

// SearchUsers 按关键字搜索用户，排除查看者本人；匿名查看者不带 viewer_status
func (s *followService) SearchUsers(ctx context.Context, viewerID, query string, page, pageSize int) (UserSearchResult, error) {
	if len(query) > maxSearchLen {
		return UserSearchResult{}, invalid("search query too long")
	}
	offset, limit := paginate(page, pageSize)
	rows, total, err := s.profileRepo.Search(ctx, query, viewerID, offset, limit)
	if err != nil {
		return UserSearchResult{}, transient("search users", err)
	}
	ids := make([]string, len(rows))
	for i, p := range rows {
		ids[i] = p.UserID
	}
	viewerEdges, err := s.viewerEdges(ctx, viewerID, ids)
	if err != nil {
		return UserSearchResult{}, err
	}

	res := UserSearchResult{Total: total, List: make([]UserEntry, len(rows))}
	for i, p := range rows {
		res.List[i] = UserEntry{
			ProfileSummary: summarize(p.UserID, p),
			Bio:            p.Bio,
			IsPrivate:      p.IsPrivate,
			ViewerStatus:   viewerStatus(viewerID, p.UserID, viewerEdges),
		}
	}
	return res, nil
}

func (s *followService) viewerEdges(ctx context.Context, viewerID string, ids []string) (map[string]model.FollowStatus, error) {
	if viewerID == "" || len(ids) == 0 {
		return nil, nil
	}
	edges, err := s.followRepo.StatusesFrom(ctx, viewerID, ids)
	if err != nil {
		return nil, transient("load viewer status", err)
	}
	return edges, nil
}

// viewerStatus 匿名查看者返回空串
func viewerStatus(viewerID, userID string, edges map[string]model.FollowStatus) string {
	switch {
	case viewerID == "":
		return ""
	case userID == viewerID:
		return ViewerSelf
	case edges[userID] == model.FollowStatusAccepted:
		return ViewerFollowing
	case edges[userID] == model.FollowStatusPending:
		return ViewerRequested
	default:
		return ViewerNone
	}
}

// ListMutual userID 的关注集合与粉丝集合（均 accepted）的交集，按 username 排序
func (s *followService) ListMutual(ctx context.Context, userID string) ([]ProfileSummary, error) {
	if userID == "" {
		return nil, invalid("user id is required")
	}
	loadFollowing := func(ctx context.Context) ([]string, error) { return s.followRepo.FollowingIDs(ctx, userID) }
	loadFollowers := func(ctx context.Context) ([]string, error) { return s.followRepo.FollowerIDs(ctx, userID) }

	var ids []string
	var err error
	if s.cache != nil {
		ids, err = s.cache.MutualIDs(ctx, userID, loadFollowing, loadFollowers)
		if err != nil {
			logger.Warn("mutual from cache failed, falling back to db", zap.String("user", userID), zap.Error(err))
			ids = nil
		}
	}
	if ids == nil {
		following, err := loadFollowing(ctx)
		if err != nil {
			return nil, transient("load following ids", err)
		}
		followers, err := loadFollowers(ctx)
		if err != nil {
			return nil, transient("load follower ids", err)
		}
		ids = intersect(following, followers)
	}

	profiles, err := s.profileRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, transient("load profiles", err)
	}
	res := make([]ProfileSummary, len(ids))
	for i, id := range ids {
		res[i] = summarize(id, profiles[id])
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Username != res[j].Username {
			return res[i].Username < res[j].Username
		}
		return res[i].UserID < res[j].UserID
	})
	return res, nil
}

func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	res := make([]string, 0)
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}

func (s *followService) ListPendingRequests(ctx context.Context, ownerID string) ([]PendingRequest, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	edges, err := s.followRepo.ListPending(ctx, ownerID)
	if err != nil {
		return nil, transient("list pending requests", err)
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	profiles, err := s.profileRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, transient("load profiles", err)
	}
	res := make([]PendingRequest, len(edges))
	for i, e := range edges {
		res[i] = PendingRequest{RequestID: e.ID, Requester: summarize(e.FollowerID, profiles[e.FollowerID]), CreatedAt: e.CreatedAt}
	}
	return res, nil
}

// ReconcileCounts 用 follows 表重算冗余计数
func (s *followService) ReconcileCounts(ctx context.Context, userID string) (repository.Counts, error) {
	if userID == "" {
		return repository.Counts{}, invalid("user id is required")
	}
	before, after, err := s.followRepo.ReconcileCounts(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.Counts{}, ErrNotFound
	}
	if err != nil {
		return repository.Counts{}, transient("reconcile counts", err)
	}
	if before != after {
		logger.Warn("follow counters drifted",
			zap.String("user", userID),
			zap.Int64("followers_before", before.Followers), zap.Int64("followers_after", after.Followers),
			zap.Int64("following_before", before.Following), zap.Int64("following_after", after.Following))
	}
	return after, nil
}

func (s *followService) invalidate(ctx context.Context, a, b string) {
	if err := s.cache.Invalidate(ctx, a, b); err != nil {
		logger.Warn("relation cache invalidate failed", zap.String("a", a), zap.String("b", b), zap.Error(err))
	}
}

func paginate(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return (page - 1) * pageSize, pageSize
}
