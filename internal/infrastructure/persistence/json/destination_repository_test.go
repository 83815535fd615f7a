package json

import (
	"context"
	"testing"
	"time"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/destination"
)

func TestDestinationRepositoryRoundTrip(t *testing.T) {
	repo, err := NewDestinationRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDestinationRepository: %v", err)
	}
	ctx := context.Background()

	chatID := int64(-100123)
	doc := destination.Document{
		"42": {
			NotificationChatID: &chatID,
			KnownChats: []destination.Known{
				{ChatID: chatID, Title: "ops room", Type: "supergroup", AddedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
			},
		},
	}
	if err := repo.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	settings, ok := loaded["42"]
	if !ok {
		t.Fatal("owner settings missing after round trip")
	}
	if settings.NotificationChatID == nil || *settings.NotificationChatID != chatID {
		t.Errorf("notification chat = %v, want %d", settings.NotificationChatID, chatID)
	}
	if len(settings.KnownChats) != 1 || settings.KnownChats[0].Title != "ops room" {
		t.Errorf("known chats = %+v", settings.KnownChats)
	}
}

func TestDestinationRepositoryMissingFile(t *testing.T) {
	repo, err := NewDestinationRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewDestinationRepository: %v", err)
	}
	doc, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc) != 0 {
		t.Errorf("doc = %v, want empty", doc)
	}
}
