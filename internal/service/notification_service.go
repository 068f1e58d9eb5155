package service

import (
	"context"
	"time"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
)

const defaultNotificationLimit = 20

type NotificationService interface {
	List(ctx context.Context, callerID string, limit int) ([]*model.Notification, error)
	MarkAllRead(ctx context.Context, callerID string) (int64, error)
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) List(ctx context.Context, callerID string, limit int) ([]*model.Notification, error) {
	if callerID == "" {
		return nil, ErrUnauthorized
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultNotificationLimit
	}
	res, err := s.repo.ListForUser(ctx, callerID, limit)
	if err != nil {
		return nil, transient("list notifications", err)
	}
	return res, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, callerID string) (int64, error) {
	if callerID == "" {
		return 0, ErrUnauthorized
	}
	n, err := s.repo.MarkAllRead(ctx, callerID, time.Now().UTC())
	if err != nil {
		return 0, transient("mark notifications read", err)
	}
	return n, nil
}
