package http

import (
	"context"
	"errors"
	"testing"

	"trivia-engine/internal/domain"
)

func attachClient(h *Hub, id, channel string, buffer int) *client {
	c := &client{
		participant: domain.Participant{ID: id, DisplayName: id},
		channel:     channel,
		send:        make(chan outboundMessage, buffer),
	}
	h.attach(c)
	return c
}

func TestHubDropsOutputForOfflineParticipants(t *testing.T) {
	h := NewHub(nil)
	err := h.ShowQuestion(context.Background(), domain.Participant{ID: "ghost"}, domain.QuestionView{QuestionID: "q1"})
	if err != nil {
		t.Fatalf("expected offline participant to be skipped, got %v", err)
	}
	if h.Connected("ghost") {
		t.Fatalf("ghost should not be connected")
	}
}

func TestHubReportsFullBuffer(t *testing.T) {
	h := NewHub(nil)
	c := attachClient(h, "u1", "", 1)
	ctx := context.Background()

	if err := h.Notify(ctx, c.participant, "first"); err != nil {
		t.Fatalf("first notify: %v", err)
	}
	err := h.Notify(ctx, c.participant, "second")
	var pe *domain.PresentationError
	if !errors.As(err, &pe) || !errors.Is(err, errSlowClient) {
		t.Fatalf("expected presentation error for full buffer, got %v", err)
	}
	if msg := <-c.send; msg.Type != MsgNotice {
		t.Fatalf("expected notice, got %s", msg.Type)
	}
}

func TestHubAnnouncesToChannelMembers(t *testing.T) {
	h := NewHub(nil)
	a := attachClient(h, "u1", "room-1", 4)
	b := attachClient(h, "u2", "room-1", 4)
	other := attachClient(h, "u3", "room-2", 4)

	err := h.Announce(context.Background(), "room-1", domain.Announcement{Kind: domain.AnnounceStarting, SessionID: "g1"})
	if err != nil {
		t.Fatalf("announce: %v", err)
	}
	for _, c := range []*client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Type != MsgAnnouncement {
				t.Fatalf("expected announcement, got %s", msg.Type)
			}
		default:
			t.Fatalf("%s missed the announcement", c.participant.ID)
		}
	}
	if len(other.send) != 0 {
		t.Fatalf("announcement leaked to another channel")
	}
}

func TestHubReplacesPreviousConnection(t *testing.T) {
	h := NewHub(nil)
	old := attachClient(h, "u1", "room-1", 1)
	fresh := attachClient(h, "u1", "room-1", 1)

	h.detach(old)
	if !h.Connected("u1") {
		t.Fatalf("detaching a stale connection must keep the fresh one")
	}
	if err := h.Notify(context.Background(), fresh.participant, "hi"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(fresh.send) != 1 || len(old.send) != 0 {
		t.Fatalf("expected output on the fresh connection only")
	}
}
