package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EdgeNone 缓存“无关注边”这一事实，与 miss 区分
const EdgeNone = "none"

// 空集合占位成员，redis 无法保存空 set
const emptyMember = "-"

// 版本号至少保留这么久，避免回源期间版本 key 过期导致旧值被写回
const minVersionTTL = time.Hour

var (
	errStaleFill = errors.New("relation cache: version moved during fill")
	// ErrCacheMiss MutualIDs 期间集合被失效，调用方应回源
	ErrCacheMiss = errors.New("relation cache: miss")
)

// RelationCache 关系链读缓存：有序对的边状态 + 每个用户 accepted 粉丝/关注 ID 集合。
// 只作加速，数据以数据库为准；所有方法对 nil 接收者安全，表现为未命中。
//
// 回源写入是条件写：回源前读版本号，写入时 WATCH 版本 key，Invalidate 会递增版本，
// 因此在读库与写缓存之间提交的变更不会被旧值覆盖。
type RelationCache struct {
	client *redis.Client
	ttl    time.Duration
	verTTL time.Duration
}

func NewRelationCache(client *redis.Client, ttl time.Duration) *RelationCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	verTTL := 6 * ttl
	if verTTL < minVersionTTL {
		verTTL = minVersionTTL
	}
	return &RelationCache{client: client, ttl: ttl, verTTL: verTTL}
}

func edgeKey(followerID, followedID string) string {
	return fmt.Sprintf("follow:edge:%s:%s", followerID, followedID)
}

func followersKey(userID string) string { return fmt.Sprintf("followers:set:%s", userID) }

func followingKey(userID string) string { return fmt.Sprintf("following:set:%s", userID) }

// pairVersionKey 与方向无关
func pairVersionKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("follow:ver:pair:%s:%s", a, b)
}

func userVersionKey(userID string) string { return fmt.Sprintf("follow:ver:user:%s", userID) }

// EdgeStatus 返回缓存的边状态（pending / accepted / none），ok=false 表示未命中
func (c *RelationCache) EdgeStatus(ctx context.Context, followerID, followedID string) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	v, err := c.client.Get(ctx, edgeKey(followerID, followedID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// PairVersion 回源读库之前调用，结果交给 SetEdgeStatuses
func (c *RelationCache) PairVersion(ctx context.Context, a, b string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	return parseVersion(c.client.Get(ctx, pairVersionKey(a, b)))
}

// SetEdgeStatuses 写入 a->b、b->a 两个方向；版本号已变化时放弃写入
func (c *RelationCache) SetEdgeStatuses(ctx context.Context, a, b, ab, ba string, version int64) error {
	if c == nil {
		return nil
	}
	if ab == "" {
		ab = EdgeNone
	}
	if ba == "" {
		ba = EdgeNone
	}
	return c.fill(ctx, pairVersionKey(a, b), version, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, edgeKey(a, b), ab, c.ttl)
		pipe.Set(ctx, edgeKey(b, a), ba, c.ttl)
	})
}

// FollowerIDs accepted 粉丝集合，未命中时用 loader 回源并写入
func (c *RelationCache) FollowerIDs(ctx context.Context, userID string, loader func(context.Context) ([]string, error)) ([]string, error) {
	return c.members(ctx, userID, followersKey(userID), loader)
}

func (c *RelationCache) FollowingIDs(ctx context.Context, userID string, loader func(context.Context) ([]string, error)) ([]string, error) {
	return c.members(ctx, userID, followingKey(userID), loader)
}

// MutualIDs 用 SINTER 求 userID 的关注集合与粉丝集合的交集。
// 两个集合在求交前被失效时返回 ErrCacheMiss。
func (c *RelationCache) MutualIDs(ctx context.Context, userID string, loadFollowing, loadFollowers func(context.Context) ([]string, error)) ([]string, error) {
	if c == nil {
		return nil, errors.New("relation cache disabled")
	}
	if err := c.ensure(ctx, userID, followingKey(userID), loadFollowing); err != nil {
		return nil, err
	}
	if err := c.ensure(ctx, userID, followersKey(userID), loadFollowers); err != nil {
		return nil, err
	}

	var inter *redis.StringSliceCmd
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, followingKey(userID), followersKey(userID)).Result()
		if err != nil {
			return err
		}
		if n != 2 {
			return ErrCacheMiss
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			inter = pipe.SInter(ctx, followingKey(userID), followersKey(userID))
			return nil
		})
		return err
	}, followingKey(userID), followersKey(userID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	ids, err := inter.Result()
	if err != nil {
		return nil, err
	}
	return stripPlaceholder(ids), nil
}

// Invalidate 清除与 a、b 这一对用户相关的全部缓存（两个方向），并递增版本号使进行中的回源作废
func (c *RelationCache) Invalidate(ctx context.Context, a, b string) error {
	if c == nil {
		return nil
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx,
		edgeKey(a, b), edgeKey(b, a),
		followersKey(a), followingKey(a),
		followersKey(b), followingKey(b),
	)
	for _, k := range []string{pairVersionKey(a, b), userVersionKey(a), userVersionKey(b)} {
		pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, c.verTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RelationCache) members(ctx context.Context, userID, key string, loader func(context.Context) ([]string, error)) ([]string, error) {
	if c == nil {
		return loader(ctx)
	}
	ids, err := c.client.SMembers(ctx, key).Result()
	if err == nil && len(ids) > 0 {
		return stripPlaceholder(ids), nil
	}
	ver, verr := parseVersion(c.client.Get(ctx, userVersionKey(userID)))
	ids, err = loader(ctx)
	if err != nil {
		return nil, err
	}
	if verr != nil {
		return ids, verr
	}
	if serr := c.store(ctx, userID, key, ids, ver); serr != nil {
		return ids, serr
	}
	return ids, nil
}

func (c *RelationCache) ensure(ctx context.Context, userID, key string, loader func(context.Context) ([]string, error)) error {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ver, err := parseVersion(c.client.Get(ctx, userVersionKey(userID)))
	if err != nil {
		return err
	}
	ids, err := loader(ctx)
	if err != nil {
		return err
	}
	return c.store(ctx, userID, key, ids, ver)
}

func (c *RelationCache) store(ctx context.Context, userID, key string, ids []string, version int64) error {
	members := interfaceSlice(ids)
	if len(members) == 0 {
		members = []interface{}{emptyMember}
	}
	return c.fill(ctx, userVersionKey(userID), version, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, c.ttl)
	})
}

// fill 在 WATCH 版本 key 的事务里写入；版本变化或 EXEC 冲突时静默放弃
func (c *RelationCache) fill(ctx context.Context, versionKey string, version int64, write func(redis.Pipeliner)) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := parseVersion(tx.Get(ctx, versionKey))
		if err != nil {
			return err
		}
		if cur != version {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// 版本 key 不存在视为 0
func parseVersion(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func stripPlaceholder(ids []string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != emptyMember {
			out = append(out, id)
		}
	}
	return out
}

func interfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}
