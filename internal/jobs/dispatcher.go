package jobs

import (
	"context"
	"fmt"

	"github.com/prepsphere/server/internal/domain/notifications"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const defaultSubject = "PrepSphere notification"

// Inserter is the part of the River client the dispatcher needs.
type Inserter interface {
	InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

// EmailDispatcher queues one delivery job per stored notification.
type EmailDispatcher struct {
	client Inserter
	policy *RetryPolicy
}

var _ notifications.Dispatcher = (*EmailDispatcher)(nil)

func NewEmailDispatcher(client Inserter, policy *RetryPolicy) *EmailDispatcher {
	if policy == nil {
		policy = NewRetryPolicy(0)
	}
	return &EmailDispatcher{client: client, policy: policy}
}

func (d *EmailDispatcher) EnqueueEmails(ctx context.Context, list []notifications.Notification) error {
	if len(list) == 0 {
		return nil
	}
	opts := d.policy.InsertOpts(JobKindNotificationEmail)
	params := make([]river.InsertManyParams, 0, len(list))
	for _, n := range list {
		subject := n.Title
		if subject == "" {
			subject = defaultSubject
		}
		params = append(params, river.InsertManyParams{
			Args: NotificationEmailArgs{
				NotificationID: n.ID,
				UserID:         n.UserID,
				Subject:        subject,
				Body:           n.Message,
			},
			InsertOpts: &opts,
		})
	}
	if _, err := d.client.InsertMany(ctx, params); err != nil {
		return fmt.Errorf("enqueue notification emails: %w", err)
	}
	return nil
}
