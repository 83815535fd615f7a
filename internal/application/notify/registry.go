// Package notify delivers change notifications to each owner's configured
// destination, handling rate limits, dead destinations and fallbacks.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/destination"
	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
)

// Registry manages the persisted destination settings per owner. All
// mutations go through a load-modify-save cycle under one lock, so
// concurrent updates never lose each other's writes.
type Registry struct {
	mu   sync.Mutex
	repo destination.Repository
}

// NewRegistry returns a registry backed by the given repository.
func NewRegistry(repo destination.Repository) *Registry {
	return &Registry{repo: repo}
}

// Destination returns the owner's configured notification chat, or nil when
// none is set.
func (r *Registry) Destination(ctx context.Context, owner watch.OwnerRef) (*int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	settings, ok := doc[owner.Key()]
	if !ok || settings.NotificationChatID == nil {
		return nil, nil
	}
	id := *settings.NotificationChatID
	return &id, nil
}

// SetDestination configures (or with nil clears) the owner's notification chat.
func (r *Registry) SetDestination(ctx context.Context, owner watch.OwnerRef, chatID *int64) error {
	return r.update(ctx, owner, func(s *destination.Settings) {
		s.NotificationChatID = chatID
	})
}

// RegisterKnown records a chat the bot was added to for this owner. Already
// known chats get their title and type refreshed.
func (r *Registry) RegisterKnown(ctx context.Context, owner watch.OwnerRef, chatID int64, title, chatType string) error {
	return r.update(ctx, owner, func(s *destination.Settings) {
		for i := range s.KnownChats {
			if s.KnownChats[i].ChatID == chatID {
				s.KnownChats[i].Title = title
				s.KnownChats[i].Type = chatType
				return
			}
		}
		s.KnownChats = append(s.KnownChats, destination.Known{
			ChatID:  chatID,
			Title:   title,
			Type:    chatType,
			AddedAt: time.Now().UTC(),
		})
	})
}

// RemoveKnown drops a chat from the owner's known list, clearing the
// configured destination too when it pointed at that chat.
func (r *Registry) RemoveKnown(ctx context.Context, owner watch.OwnerRef, chatID int64) error {
	return r.update(ctx, owner, func(s *destination.Settings) {
		kept := s.KnownChats[:0]
		for _, k := range s.KnownChats {
			if k.ChatID != chatID {
				kept = append(kept, k)
			}
		}
		s.KnownChats = kept
		if s.NotificationChatID != nil && *s.NotificationChatID == chatID {
			s.NotificationChatID = nil
		}
	})
}

// KnownDestinations lists the chats recorded for the owner.
func (r *Registry) KnownDestinations(ctx context.Context, owner watch.OwnerRef) ([]destination.Known, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	settings, ok := doc[owner.Key()]
	if !ok {
		return nil, nil
	}
	out := make([]destination.Known, len(settings.KnownChats))
	copy(out, settings.KnownChats)
	return out, nil
}

func (r *Registry) update(ctx context.Context, owner watch.OwnerRef, mutate func(*destination.Settings)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load destinations: %w", err)
	}
	settings, ok := doc[owner.Key()]
	if !ok {
		settings = &destination.Settings{}
		doc[owner.Key()] = settings
	}
	mutate(settings)

	if settings.NotificationChatID == nil && len(settings.KnownChats) == 0 {
		delete(doc, owner.Key())
	}
	if err := r.repo.Save(ctx, doc); err != nil {
		return fmt.Errorf("save destinations: %w", err)
	}
	return nil
}
