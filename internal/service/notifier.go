package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/d60-Lab/tastegraph/internal/model"
	"github.com/d60-Lab/tastegraph/internal/repository"
	"github.com/d60-Lab/tastegraph/pkg/logger"
)

type notifyJob struct {
	typ         model.NotificationType
	recipientID string
	actorID     string
	followID    string
	enqAt       time.Time
}

// Notifier 本地异步通知投递：关系变更提交后入队，worker 写 notifications 表。
// 队列满时丢弃并告警，通知丢失不影响关注边本身。
type Notifier struct {
	notifications repository.NotificationRepository
	profiles      repository.ProfileRepository
	ch            chan notifyJob
	policy        *bluemonday.Policy
	wg            sync.WaitGroup
	once          sync.Once
	stopCh        chan struct{}
}

func NewNotifier(notifications repository.NotificationRepository, profiles repository.ProfileRepository, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &Notifier{
		notifications: notifications,
		profiles:      profiles,
		ch:            make(chan notifyJob, queueSize),
		policy:        bluemonday.StrictPolicy(),
		stopCh:        make(chan struct{}),
	}
}

// Start 启动 workers，返回停止函数；停止时先尽量排空队列
func (n *Notifier) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.loop()
	}
	return func(ctx context.Context) error {
		n.once.Do(func() { close(n.stopCh) })
		done := make(chan struct{})
		go func() {
			n.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case job := <-n.ch:
			n.deliver(job)
		case <-n.stopCh:
			for {
				select {
				case job := <-n.ch:
					n.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) deliver(job notifyJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	name := job.actorID
	if p, err := n.profiles.Get(ctx, job.actorID); err == nil {
		name = p.DisplayName()
	}
	rec := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    job.recipientID,
		ActorID:   job.actorID,
		Type:      job.typ,
		FollowID:  job.followID,
		Message:   n.message(job.typ, name),
		CreatedAt: job.enqAt,
	}
	if err := n.notifications.Create(ctx, rec); err != nil {
		logger.Warn("notification write failed", zap.String("type", string(job.typ)), zap.String("user", job.recipientID), zap.Error(err))
	}
}

func (n *Notifier) message(typ model.NotificationType, name string) string {
	name = n.policy.Sanitize(name)
	switch typ {
	case model.NotificationFollowRequest:
		return fmt.Sprintf("%s requested to follow you", name)
	case model.NotificationFollowAccepted:
		return fmt.Sprintf("%s accepted your follow request", name)
	default:
		return fmt.Sprintf("%s started following you", name)
	}
}

// Enqueue 非阻塞入队
func (n *Notifier) Enqueue(typ model.NotificationType, recipientID, actorID, followID string) {
	select {
	case n.ch <- notifyJob{typ: typ, recipientID: recipientID, actorID: actorID, followID: followID, enqAt: time.Now().UTC()}:
	default:
		logger.Warn("notify queue full, drop", zap.String("type", string(typ)), zap.String("user", recipientID), zap.String("actor", actorID))
	}
}

// QueueLen 返回当前队列长度（采样值）。
func (n *Notifier) QueueLen() int { return len(n.ch) }
