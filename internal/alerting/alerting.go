// Package alerting publishes priority escalation events to operators.
//
// Publishing is best-effort: a failed publish is logged and counted, never
// propagated into the scoring path. A beneficiary's state is already
// persisted by the time an alert fires; losing an alert loses a
// notification, not data.
package alerting

import (
	"context"

	"aidchain/internal/priority/models"
)

// Publisher delivers escalation events to the alerting channel.
type Publisher interface {
	PublishEscalation(ctx context.Context, event models.Escalation) error
	Close() error
}
