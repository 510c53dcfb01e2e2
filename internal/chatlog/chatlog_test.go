package chatlog

import (
	"errors"
	"testing"
	"time"

	"github.com/YatingPan/chat-room/internal/domain"
)

func newTestStore(t *testing.T, start time.Time, scripted []domain.ScriptedComment) *Store {
	t.Helper()
	s := NewStore()
	s.Init(Meta{
		RoomID:    "room-1",
		SpecName:  "pilot_study_1.json",
		Name:      "the online discussion room",
		StartTime: start,
		Duration:  15,
		BotType:   "Alex (Moderator)",
	}, scripted)
	return s
}

func TestInitMaterializesScriptedTimeline(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	scripted := []domain.ScriptedComment{
		{Content: "welcome", Offset: 30, BotName: "Alex", Replies: []domain.ScriptedComment{
			{Content: "nested", Offset: 45, BotName: "Alex"},
		}},
		{Content: "later", Offset: 120, BotName: "Alex"},
	}
	s := newTestStore(t, start, scripted)

	comments, err := s.Comments("room-1")
	if err != nil {
		t.Fatalf("Comments failed: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 top-level comments, got %d", len(comments))
	}
	if comments[0].ID != -1 || comments[1].ID != -3 {
		t.Errorf("unexpected agent ids: %d, %d", comments[0].ID, comments[1].ID)
	}
	if !comments[0].IsAgent {
		t.Error("scripted comment should be agent-authored")
	}
	if got, want := comments[0].Time, start.Add(30*time.Second); !got.Equal(want) {
		t.Errorf("offset not anchored to start time: got %v want %v", got, want)
	}
	if len(comments[0].Replies) != 1 || comments[0].Replies[0].ID != -2 {
		t.Errorf("nested scripted reply not materialized: %+v", comments[0].Replies)
	}
}

func TestIDSpacesNeverIntersect(t *testing.T) {
	t.Parallel()

	start := time.Now()
	s := newTestStore(t, start, []domain.ScriptedComment{{Content: "a", Offset: 0, BotName: "Alex"}})

	seen := make(map[int]bool)
	record := func(id int) {
		if seen[id] {
			t.Fatalf("id %d assigned twice", id)
		}
		seen[id] = true
	}

	comments, _ := s.Comments("room-1")
	for _, c := range comments {
		record(c.ID)
	}
	for i := 0; i < 5; i++ {
		c, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "human", Time: start})
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if c.ID <= 0 {
			t.Errorf("human comment got non-positive id %d", c.ID)
		}
		record(c.ID)
	}
	for i := 0; i < 5; i++ {
		lc, err := s.AppendAgentComment("room-1", "Alex", "agent", start)
		if err != nil {
			t.Fatalf("agent append failed: %v", err)
		}
		if lc.ID >= 0 {
			t.Errorf("agent comment got non-negative id %d", lc.ID)
		}
		record(lc.ID)
	}
}

func TestAssembleWindowOrderingAndFiltering(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, start, nil)

	// Out-of-order appends; windowing must re-sort by time.
	times := []time.Duration{90 * time.Second, 10 * time.Second, 45 * time.Second}
	for _, d := range times {
		if _, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "c", Time: start.Add(d)}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	w, err := s.AssembleWindow("room-1", 0, 2)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	if len(w.Comments) != 3 {
		t.Fatalf("expected 3 comments in window, got %d", len(w.Comments))
	}
	for i := 1; i < len(w.Comments); i++ {
		if w.Comments[i].Time.Before(w.Comments[i-1].Time) {
			t.Errorf("top-level comments not time-ascending at %d", i)
		}
	}

	narrow, err := s.AssembleWindow("room-1", 0, 1)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	if len(narrow.Comments) != 2 {
		t.Errorf("window [0,1) should hold the 10s and 45s comments, got %d", len(narrow.Comments))
	}
}

func TestAssembleWindowScriptedOffsetScenario(t *testing.T) {
	t.Parallel()

	// Spec with a scripted comment 30 seconds in: visible in the first
	// minute window, absent from the second.
	start := time.Now()
	s := newTestStore(t, start, []domain.ScriptedComment{{Content: "hi", Offset: 30, BotName: "Alex"}})

	first, err := s.AssembleWindow("room-1", 0, 1)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	if len(first.Comments) != 1 {
		t.Errorf("window [0,1) should include the 30s scripted comment, got %d", len(first.Comments))
	}

	second, err := s.AssembleWindow("room-1", 1, 2)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	if len(second.Comments) != 0 {
		t.Errorf("window [1,2) should exclude the 30s scripted comment, got %d", len(second.Comments))
	}
}

func TestDisjointWindowsPartitionComments(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, start, nil)

	// One comment per minute over [0, 6).
	for m := 0; m < 6; m++ {
		at := start.Add(time.Duration(m)*time.Minute + 10*time.Second)
		if _, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "c", Time: at}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	left, err := s.AssembleWindow("room-1", 0, 3)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	right, err := s.AssembleWindow("room-1", 3, 6)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}

	seen := make(map[int]int)
	for _, c := range left.Comments {
		seen[c.ID]++
	}
	for _, c := range right.Comments {
		seen[c.ID]++
	}
	if len(seen) != 6 {
		t.Fatalf("union of disjoint windows should cover all 6 comments, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("comment %d appeared %d times across disjoint windows", id, n)
		}
	}
}

func TestIdenticalTimestampsKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	start := time.Now()
	s := newTestStore(t, start, nil)

	at := start.Add(5 * time.Second)
	first, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "first", Time: at})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	second, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "second", Time: at})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	w, err := s.AssembleWindow("room-1", 0, 1)
	if err != nil {
		t.Fatalf("AssembleWindow failed: %v", err)
	}
	if len(w.Comments) != 2 {
		t.Fatalf("expected both comments, got %d", len(w.Comments))
	}
	if w.Comments[0].ID != first.ID || w.Comments[1].ID != second.ID {
		t.Errorf("tie-break should preserve insertion order, got %d then %d",
			w.Comments[0].ID, w.Comments[1].ID)
	}
}

func TestRepliesAttachedSortedWithoutMutation(t *testing.T) {
	t.Parallel()

	start := time.Now()
	s := newTestStore(t, start, nil)

	parent, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "parent", Time: start.Add(time.Second)})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Replies inserted out of time order are re-sorted on assembly.
	for _, d := range []time.Duration{40 * time.Second, 20 * time.Second, 30 * time.Second} {
		_, err := s.AppendReply("room-1", domain.Reply{
			Comment:  domain.Comment{Content: "r", Time: start.Add(d)},
			ParentID: parent.ID,
		})
		if err != nil {
			t.Fatalf("append reply failed: %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		w, err := s.AssembleWindow("room-1", 0, 1)
		if err != nil {
			t.Fatalf("AssembleWindow failed: %v", err)
		}
		if len(w.Comments) != 1 {
			t.Fatalf("expected 1 top-level comment, got %d", len(w.Comments))
		}
		reps := w.Comments[0].Replies
		if len(reps) != 3 {
			t.Fatalf("expected 3 attached replies, got %d", len(reps))
		}
		for j := 1; j < len(reps); j++ {
			if reps[j].Time.Before(reps[j-1].Time) {
				t.Errorf("replies not time-ascending at %d", j)
			}
		}
	}

	// The underlying log must be unchanged by assembly: raw audit order is
	// still the insertion order.
	raw, err := s.RawReplies("room-1")
	if err != nil {
		t.Fatalf("RawReplies failed: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected 3 raw replies, got %d", len(raw))
	}
	if !raw[0].Comment.Time.After(raw[1].Comment.Time) {
		t.Error("raw audit order should be insertion order, not sorted")
	}
}

func TestActionAuditGrowsWhileProjectionReplaces(t *testing.T) {
	t.Parallel()

	start := time.Now()
	s := newTestStore(t, start, nil)

	parent, err := s.AppendTopLevelComment("room-1", domain.Comment{Content: "parent", Time: start})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	for i := 0; i < 4; i++ {
		u := domain.ActionUpdate{
			ParentCommentID: parent.ID,
			SenderID:        "u1",
			Actions:         map[string]bool{"like": i%2 == 0},
			Time:            start.Add(time.Duration(i) * time.Second),
		}
		if err := s.RecordActionUpdate("room-1", u); err != nil {
			t.Fatalf("record action failed: %v", err)
		}

		audit, err := s.RawActions("room-1")
		if err != nil {
			t.Fatalf("RawActions failed: %v", err)
		}
		if len(audit) != i+1 {
			t.Errorf("audit trail should grow monotonically: got %d want %d", len(audit), i+1)
		}

		latest, ok, err := s.Action("room-1", parent.ID)
		if err != nil || !ok {
			t.Fatalf("Action lookup failed: ok=%v err=%v", ok, err)
		}
		if got, want := latest.Actions["like"], i%2 == 0; got != want {
			t.Errorf("projection should hold only the latest update: got %v want %v", got, want)
		}
	}
}

func TestActionUpdateUnknownParent(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, time.Now(), nil)
	err := s.RecordActionUpdate("room-1", domain.ActionUpdate{ParentCommentID: 99})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown parent, got %v", err)
	}
}

func TestMutatorsOnUnknownRoom(t *testing.T) {
	t.Parallel()

	s := NewStore()

	if _, err := s.AppendTopLevelComment("nope", domain.Comment{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("AppendTopLevelComment: expected ErrNotFound, got %v", err)
	}
	if _, err := s.AppendReply("nope", domain.Reply{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("AppendReply: expected ErrNotFound, got %v", err)
	}
	if err := s.RecordActionUpdate("nope", domain.ActionUpdate{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("RecordActionUpdate: expected ErrNotFound, got %v", err)
	}
	if _, err := s.AssembleWindow("nope", 0, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("AssembleWindow: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveDropsLog(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, time.Now(), nil)
	s.Remove("room-1")
	if _, err := s.Comments("room-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after Remove, got %v", err)
	}
}
