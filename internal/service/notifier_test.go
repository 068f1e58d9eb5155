package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/internal/testutil"
)

func TestNotifier_DropsWhenFull(t *testing.T) {
	db := testutil.NewDB(t)
	n := NewNotifier(repository.NewNotificationRepository(db), repository.NewProfileRepository(db), 1)

	n.Enqueue(model.NotificationFollow, "b", "a", "f1")
	n.Enqueue(model.NotificationFollow, "c", "a", "f2")
	assert.Equal(t, 1, n.QueueLen())
}

func TestNotifier_DrainOnStop(t *testing.T) {
	db := testutil.NewDB(t)
	notifRepo := repository.NewNotificationRepository(db)
	n := NewNotifier(notifRepo, repository.NewProfileRepository(db), 10)

	for i := 0; i < 5; i++ {
		n.Enqueue(model.NotificationFollow, "b", "a", "f")
	}
	stop := n.Start(2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	require.NoError(t, stop(ctx))

	list, err := notifRepo.ListForUser(context.Background(), "b", 10)
	require.NoError(t, err)
	assert.Len(t, list, 5)
	assert.Zero(t, n.QueueLen())
}

func TestNotifier_SanitizesActorName(t *testing.T) {
	db := testutil.NewDB(t)
	p := model.NewProfile("a", "alice")
	p.FullName = `<script>alert(1)</script><b>Alice</b>`
	require.NoError(t, db.Create(p).Error)

	notifRepo := repository.NewNotificationRepository(db)
	n := NewNotifier(notifRepo, repository.NewProfileRepository(db), 10)
	n.Enqueue(model.NotificationFollowRequest, "b", "a", "f1")
	require.NoError(t, n.Start(1)(context.Background()))

	list, err := notifRepo.ListForUser(context.Background(), "b", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Alice requested to follow you", list[0].Message)
	assert.NotContains(t, list[0].Message, "<")
}

func TestNotifier_UnknownActorFallsBackToID(t *testing.T) {
	db := testutil.NewDB(t)
	notifRepo := repository.NewNotificationRepository(db)
	n := NewNotifier(notifRepo, repository.NewProfileRepository(db), 10)
	n.Enqueue(model.NotificationFollowAccepted, "b", "ghost", "f1")
	require.NoError(t, n.Start(1)(context.Background()))

	list, err := notifRepo.ListForUser(context.Background(), "b", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ghost accepted your follow request", list[0].Message)
}
