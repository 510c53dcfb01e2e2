package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/YatingPan/chat-room/internal/domain"
)

const specJSON = `{
	"roomName": "the online discussion room",
	"duration": 10,
	"botType": "Alex (Moderator)",
	"postName": "",
	"outboundLink": "https://example.org/survey",
	"comments": [
		{"content": "welcome", "time": 30, "botName": "Alex",
		 "replies": [{"content": "nested", "time": 60, "botName": "Alex"}]}
	]
}`

func writeSpec(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
}

func newTestCatalog(t *testing.T, specs map[string]string) *Catalog {
	t.Helper()
	specDir := t.TempDir()
	postDir := t.TempDir()
	for name, body := range specs {
		writeSpec(t, specDir, name, body)
	}
	return New(specDir, postDir)
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, map[string]string{
		"pilot_study_1.json": specJSON,
		"pilot_study_2.json": specJSON,
	})

	rooms, err := c.Rooms()
	if err != nil {
		t.Fatalf("Rooms failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}

	for _, e := range rooms {
		name, err := c.Resolve(e.Token)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", e.Token, err)
		}
		if name != e.SpecName {
			t.Errorf("Resolve(%q) = %q, want %q", e.Token, name, e.SpecName)
		}
		if TokenOf(name) != e.Token {
			t.Errorf("TokenOf(Resolve(t)) != t for %q", name)
		}
	}
}

func TestResolveUnknownToken(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, map[string]string{"pilot_study_1.json": specJSON})
	if _, err := c.Resolve("nonsense-token"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListingIgnoresNonSpecFiles(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, map[string]string{
		"pilot_study_1.json": specJSON,
		"README.txt":         "not a room",
	})
	rooms, err := c.Rooms()
	if err != nil {
		t.Fatalf("Rooms failed: %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("expected 1 room, got %d", len(rooms))
	}
}

func TestLoadSpec(t *testing.T) {
	t.Parallel()

	c := newTestCatalog(t, map[string]string{"pilot_study_1.json": specJSON})
	spec, post, err := c.Load("pilot_study_1.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if spec.RoomName != "the online discussion room" || spec.Duration != 10 {
		t.Errorf("unexpected spec: %+v", spec)
	}
	if len(spec.Comments) != 1 || len(spec.Comments[0].Replies) != 1 {
		t.Errorf("scripted comment tree not parsed: %+v", spec.Comments)
	}
	if spec.Comments[0].Offset != 30 {
		t.Errorf("offset = %d, want 30", spec.Comments[0].Offset)
	}
	if post == nil {
		t.Error("expected empty post, got nil")
	}
}

func TestLoadMalformedSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"roomName": `},
		{"zero duration", `{"roomName": "x", "duration": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestCatalog(t, map[string]string{"broken.json": tt.body})
			if _, _, err := c.Load("broken.json"); !errors.Is(err, domain.ErrMalformedSpec) {
				t.Errorf("expected ErrMalformedSpec, got %v", err)
			}
		})
	}
}

func TestLoadSpecWithPost(t *testing.T) {
	t.Parallel()

	specDir := t.TempDir()
	postDir := t.TempDir()
	writeSpec(t, specDir, "room.json", `{
		"roomName": "r", "duration": 10, "postName": "post.json",
		"comments": []
	}`)
	if err := os.WriteFile(filepath.Join(postDir, "post.json"), []byte(`{
		"title": "A headline", "lead": "lead", "content": "body",
		"time": "2024-03-01T12:00:00Z", "imageName": "img.png",
		"initialLikes": 12, "initialDislikes": 3
	}`), 0644); err != nil {
		t.Fatalf("write post: %v", err)
	}

	c := New(specDir, postDir)
	_, post, err := c.Load("room.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if post.Title != "A headline" || post.InitialLikes != 12 {
		t.Errorf("unexpected post: %+v", post)
	}
	if post.Time.IsZero() {
		t.Error("post time not parsed")
	}
}
