package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
)

// ErrDestinationGone marks a send failure that means the destination chat is
// permanently unusable: deleted, the bot was kicked, or posting rights were
// revoked. Messenger implementations wrap it so the notifier can distinguish
// dead destinations from transient faults.
var ErrDestinationGone = errors.New("notification destination gone")

// Messenger sends one text message to one chat.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Notifier routes change notifications to the right chat for each owner.
// Delivery is best effort: every failure path is logged and absorbed, a
// notification must never fail a check cycle.
type Notifier struct {
	registry  *Registry
	messenger Messenger
	limiter   *rate.Limiter
	log       *zap.SugaredLogger
}

// NewNotifier builds a notifier that sends at most perSecond messages per
// second across all owners.
func NewNotifier(registry *Registry, messenger Messenger, perSecond float64, log *zap.SugaredLogger) *Notifier {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Notifier{
		registry:  registry,
		messenger: messenger,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		log:       log,
	}
}

// Deliver sends one notification on behalf of an owner. Resolution order:
// the configured chat first; for user-scoped owners a direct message is the
// fallback; the shared scope has no fallback and the message is dropped.
// When the configured chat turns out to be gone, the stale configuration is
// cleared so the next delivery goes straight to the fallback, and the user
// is told why.
func (n *Notifier) Deliver(ctx context.Context, owner watch.OwnerRef, text string) {
	chatID, err := n.registry.Destination(ctx, owner)
	if err != nil {
		n.log.Errorw("destination lookup failed", "owner", owner.Key(), "error", err)
		chatID = nil
	}

	if chatID != nil {
		err := n.send(ctx, *chatID, text)
		if err == nil {
			return
		}
		if errors.Is(err, ErrDestinationGone) {
			n.dropDeadDestination(ctx, owner, *chatID)
		} else {
			n.log.Warnw("configured destination failed", "owner", owner.Key(), "chat_id", *chatID, "error", err)
		}
		// Fall through to the direct-message fallback.
	}

	if owner.Shared() {
		if chatID == nil {
			n.log.Debugw("shared notification dropped, no destination configured")
		}
		return
	}
	if chatID != nil && *chatID == owner.UserID() {
		// The failed destination already was the direct message; retrying
		// the same chat would just fail again.
		return
	}

	if err := n.send(ctx, owner.UserID(), text); err != nil {
		n.log.Errorw("direct message fallback failed", "owner", owner.Key(), "error", err)
	}
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return n.messenger.Send(ctx, chatID, text)
}

// dropDeadDestination clears a configured chat that can no longer receive
// messages and tells the owner over direct message (users only).
func (n *Notifier) dropDeadDestination(ctx context.Context, owner watch.OwnerRef, chatID int64) {
	n.log.Warnw("destination gone, clearing configuration", "owner", owner.Key(), "chat_id", chatID)

	if err := n.registry.SetDestination(ctx, owner, nil); err != nil {
		n.log.Errorw("failed to clear dead destination", "owner", owner.Key(), "error", err)
	}
	if err := n.registry.RemoveKnown(ctx, owner, chatID); err != nil {
		n.log.Errorw("failed to forget dead chat", "owner", owner.Key(), "error", err)
	}

	if !owner.Shared() {
		notice := fmt.Sprintf("The notification chat %d is no longer reachable; notifications will arrive here until a new chat is configured.", chatID)
		if err := n.send(ctx, owner.UserID(), notice); err != nil {
			n.log.Errorw("failed to announce dead destination", "owner", owner.Key(), "error", err)
		}
	}
}
