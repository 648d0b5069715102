package messaging

import (
	"context"
	"fmt"

	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
)

// AsyncSink wraps a NotificationSink, delivering announcements through the
// dispatcher's retry queue. PublishDecisionRequest stays synchronous since
// its returned message ref keys the decision trigger.
type AsyncSink struct {
	inner      workflow.NotificationSink
	dispatcher *Dispatcher
}

// NewAsyncSink wraps inner.
func NewAsyncSink(inner workflow.NotificationSink, dispatcher *Dispatcher) *AsyncSink {
	return &AsyncSink{inner: inner, dispatcher: dispatcher}
}

var _ workflow.NotificationSink = (*AsyncSink)(nil)

// PublishDecisionRequest delegates directly.
func (s *AsyncSink) PublishDecisionRequest(ctx context.Context, req workflow.DecisionRequest) (int64, error) {
	return s.inner.PublishDecisionRequest(ctx, req)
}

// AnnounceDecision enqueues the announcement for retried delivery.
func (s *AsyncSink) AnnounceDecision(ctx context.Context, a workflow.DecisionAnnouncement) error {
	return s.dispatcher.Enqueue(Task{
		Name: fmt.Sprintf("decision-announcement:%d", a.SolveID),
		Run: func(ctx context.Context) error {
			return s.inner.AnnounceDecision(ctx, a)
		},
	})
}

// AnnounceRankUp enqueues the announcement for retried delivery.
func (s *AsyncSink) AnnounceRankUp(ctx context.Context, userID int64, rankName string) error {
	return s.dispatcher.Enqueue(Task{
		Name: fmt.Sprintf("rank-up:%d", userID),
		Run: func(ctx context.Context) error {
			return s.inner.AnnounceRankUp(ctx, userID, rankName)
		},
	})
}
