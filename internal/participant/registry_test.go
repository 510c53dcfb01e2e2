package participant

import (
	"testing"
	"time"

	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/domain"
)

func testLogs(roomID string) *chatlog.Store {
	logs := chatlog.NewStore()
	logs.Init(chatlog.Meta{RoomID: roomID, StartTime: time.Now(), Duration: 10}, nil)
	return logs
}

func TestJoinAssignsNicknameAndRecordsParticipant(t *testing.T) {
	t.Parallel()

	logs := testLogs("room-1")
	r := newRegistry([]string{"Robin", "Sam", "Kit"}, logs)

	p := r.Join(domain.AccessInfo{AccessCode: "room-1"}, "conn-1")
	if p.Author.ID != "conn-1" {
		t.Errorf("participant id = %q, want conn-1", p.Author.ID)
	}
	if p.Author.Name == "" {
		t.Error("participant got empty nickname")
	}
	if p.RoomToken != "room-1" {
		t.Errorf("room token = %q, want room-1", p.RoomToken)
	}

	w, err := logs.AssembleWindow("room-1", 0, 1)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	if len(w.Participants) != 1 || w.Participants[0].ID != "conn-1" {
		t.Errorf("participant not recorded in room log: %+v", w.Participants)
	}
}

func TestRejoinPreservesDisplayIdentity(t *testing.T) {
	t.Parallel()

	r := newRegistry([]string{"Robin", "Sam"}, testLogs("room-1"))

	first := r.Join(domain.AccessInfo{AccessCode: "room-1"}, "conn-1")

	// Reconnect with a different connection but the same external identity.
	again := r.Join(domain.AccessInfo{
		AccessCode: "room-1",
		User:       &domain.Author{ID: first.Author.ID, Name: first.Author.Name},
	}, "conn-2")

	if again.Author.ID != first.Author.ID || again.Author.Name != first.Author.Name {
		t.Errorf("rejoin changed identity: %+v vs %+v", again.Author, first.Author)
	}
}

func TestRejoinMovesParticipantToNewRoom(t *testing.T) {
	t.Parallel()

	logs := chatlog.NewStore()
	logs.Init(chatlog.Meta{RoomID: "room-a", StartTime: time.Now(), Duration: 10}, nil)
	logs.Init(chatlog.Meta{RoomID: "room-b", StartTime: time.Now(), Duration: 10}, nil)
	r := newRegistry([]string{"Robin"}, logs)

	first := r.Join(domain.AccessInfo{AccessCode: "room-a"}, "conn-1")
	moved := r.Join(domain.AccessInfo{
		AccessCode: "room-b",
		User:       &domain.Author{ID: first.Author.ID},
	}, "conn-2")

	if moved.RoomToken != "room-b" {
		t.Errorf("room token = %q, want room-b", moved.RoomToken)
	}
	if moved.Author.Name != first.Author.Name {
		t.Error("display name should survive a room change")
	}
}

func TestNicknamesUniqueUntilPoolExhausted(t *testing.T) {
	t.Parallel()

	pool := []string{"Robin", "Sam", "Kit"}
	r := newRegistry(pool, testLogs("room-1"))

	seen := make(map[string]bool)
	for i := 0; i < len(pool); i++ {
		p := r.Join(domain.AccessInfo{AccessCode: "room-1"}, "conn-"+string(rune('a'+i)))
		if seen[p.Author.Name] {
			t.Errorf("nickname %q reused before pool exhaustion", p.Author.Name)
		}
		seen[p.Author.Name] = true
	}

	// Pool exhausted: the next join must still succeed via reset.
	p := r.Join(domain.AccessInfo{AccessCode: "room-1"}, "conn-extra")
	if p.Author.Name == "" {
		t.Error("pool exhaustion should reset, not fail")
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	r := newRegistry([]string{"Robin"}, testLogs("room-1"))
	p := r.Join(domain.AccessInfo{AccessCode: "room-1"}, "conn-1")

	got, ok := r.Lookup(p.Author.ID)
	if !ok || got.Author.Name != p.Author.Name {
		t.Errorf("Lookup failed: ok=%v got=%+v", ok, got)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup of unknown id should fail")
	}
}
