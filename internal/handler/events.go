package handler

import (
	"context"
	"time"

	"github.com/iliyamo/studentdesk/internal/logging"
	q "github.com/iliyamo/studentdesk/internal/queue"
	queue_publisher "github.com/iliyamo/studentdesk/internal/service"
)

// publish emits an account event after a committed write. Failures are
// logged only; the write already happened.
func publish(ctx context.Context, p queue_publisher.Publisher, log logging.Logger, typ, userID, username string) {
	ev := q.AccountEvent{
		Type:       typ,
		UserID:     userID,
		Username:   username,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn(ctx, "account event not published", "type", typ, "user_id", ev.UserID, "err", err)
	}
}
