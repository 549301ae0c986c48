package notify

import (
	"context"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/eventhub/jobs"
)

// Enqueuer is the subset of jobs.Client used by QueueSender.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueSender hands messages to the background mail queue.
type QueueSender struct {
	queue Enqueuer
}

// NewQueueSender wraps a queue client.
func NewQueueSender(queue Enqueuer) *QueueSender {
	return &QueueSender{queue: queue}
}

// Send enqueues a mail:send task.
func (s *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := s.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: to, Subject: subject, Body: body})
	return err
}
