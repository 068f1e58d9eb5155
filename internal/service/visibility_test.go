package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/testutil"
)

func TestDecide(t *testing.T) {
	owner := func(private, reviews, saved bool) *model.Profile {
		return &model.Profile{UserID: "o", IsPrivate: private, ReviewsPublic: reviews, SavedPublic: saved}
	}
	tests := []struct {
		name      string
		owner     *model.Profile
		kind      ContentKind
		self      bool
		following bool
		want      bool
	}{
		{"self sees private", owner(true, false, false), ContentSavedItems, true, false, true},
		{"public open", owner(false, true, true), ContentProfilePosts, false, false, true},
		{"public reviews hidden", owner(false, false, true), ContentProfilePosts, false, false, false},
		{"public reviews hidden follower", owner(false, false, true), ContentProfilePosts, false, true, true},
		{"public saved hidden", owner(false, true, false), ContentSavedItems, false, false, false},
		{"private stranger", owner(true, true, true), ContentProfilePosts, false, false, false},
		{"private follower", owner(true, true, true), ContentSavedItems, false, true, true},
		{"private profile stranger", owner(true, true, true), "", false, false, false},
		{"public profile stranger", owner(false, false, false), "", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.owner, tt.kind, tt.self, tt.following))
		})
	}
}

// 每种组合下，关注都不会降低可见性
func TestDecide_FollowingNeverHurts(t *testing.T) {
	for _, private := range []bool{false, true} {
		for _, reviews := range []bool{false, true} {
			for _, saved := range []bool{false, true} {
				o := &model.Profile{IsPrivate: private, ReviewsPublic: reviews, SavedPublic: saved}
				for _, kind := range []ContentKind{"", ContentProfilePosts, ContentSavedItems} {
					if Decide(o, kind, false, false) {
						assert.True(t, Decide(o, kind, false, true))
					}
				}
			}
		}
	}
}

func TestVisibilityResolver(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	testutil.SeedProfile(t, f.db, "owner", true)
	testutil.SeedProfile(t, f.db, "fan", false)
	testutil.SeedProfile(t, f.db, "stranger", false)

	_, err := f.follows.Follow(ctx, "fan", "owner")
	require.NoError(t, err)

	// pending 不授予可见性
	ok, err := f.resolver.CanView(ctx, "fan", "owner", ContentProfilePosts)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.follows.RespondToRequest(ctx, "owner", f.pendingID(t, "owner"), true)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		v, err := f.resolver.Resolve(ctx, "fan", "owner")
		require.NoError(t, err)
		assert.Equal(t, ProfileVisibility{Profile: true, ProfilePosts: true, SavedItems: true}, v)
	}

	v, err := f.resolver.Resolve(ctx, "stranger", "owner")
	require.NoError(t, err)
	assert.Equal(t, ProfileVisibility{}, v)

	v, err = f.resolver.Resolve(ctx, "", "owner")
	require.NoError(t, err)
	assert.Equal(t, ProfileVisibility{}, v)

	v, err = f.resolver.Resolve(ctx, "owner", "owner")
	require.NoError(t, err)
	assert.True(t, v.SavedItems)

	_, err = f.resolver.CanView(ctx, "fan", "owner", "stories")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.resolver.Resolve(ctx, "fan", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVisibilityResolver_SavedDefaultsPrivate(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	testutil.SeedProfile(t, f.db, "owner", false)

	v, err := f.resolver.Resolve(ctx, "visitor", "owner")
	require.NoError(t, err)
	assert.True(t, v.Profile)
	assert.True(t, v.ProfilePosts)
	assert.False(t, v.SavedItems)
}
