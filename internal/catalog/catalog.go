// Package catalog enumerates room-specification resources and resolves the
// opaque access tokens derived from them.
package catalog

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/YatingPan/chat-room/internal/domain"
)

// Entry pairs an access token with the room-spec resource it was derived from.
type Entry struct {
	Token    string `json:"token"`
	SpecName string `json:"specName"`
}

// Catalog lists available rooms and resolves tokens to spec resources.
// The listing is computed once on first use and cached for process lifetime;
// resources added afterwards become visible only after a restart.
type Catalog struct {
	specDir string
	postDir string

	once    sync.Once
	listErr error
	entries []Entry
	byToken map[string]string
}

// New creates a catalog over the given spec and post directories.
func New(specDir, postDir string) *Catalog {
	return &Catalog{specDir: specDir, postDir: postDir}
}

// TokenOf derives the access token for a spec resource name.
// Tokens are one-way: base64(SHA-256(name)), escaped for use in URLs.
func TokenOf(specName string) string {
	sum := sha256.Sum256([]byte(specName))
	return url.QueryEscape(base64.StdEncoding.EncodeToString(sum[:]))
}

func (c *Catalog) load() {
	files, err := os.ReadDir(c.specDir)
	if err != nil {
		c.listErr = fmt.Errorf("read room spec dir: %w", err)
		return
	}
	c.byToken = make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		token := TokenOf(f.Name())
		c.entries = append(c.entries, Entry{Token: token, SpecName: f.Name()})
		c.byToken[token] = f.Name()
	}
	sort.Slice(c.entries, func(i, j int) bool {
		return c.entries[i].SpecName < c.entries[j].SpecName
	})
	slog.Info("Room catalog loaded", "rooms", len(c.entries), "dir", c.specDir)
}

// Rooms returns every catalog entry in stable (spec name) order.
func (c *Catalog) Rooms() ([]Entry, error) {
	c.once.Do(c.load)
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.entries, nil
}

// Resolve maps a token back to its spec resource name. An unknown token
// yields domain.ErrNotFound; callers treat this as access denied.
func (c *Catalog) Resolve(token string) (string, error) {
	c.once.Do(c.load)
	if c.listErr != nil {
		return "", c.listErr
	}
	name, ok := c.byToken[token]
	if !ok {
		return "", fmt.Errorf("token %q: %w", token, domain.ErrNotFound)
	}
	return name, nil
}

// Load parses the named room-spec resource, including its associated post.
// Parse failures are fatal only for that resource's room.
func (c *Catalog) Load(specName string) (*domain.RoomSpec, *domain.Post, error) {
	raw, err := os.ReadFile(filepath.Join(c.specDir, specName))
	if err != nil {
		return nil, nil, fmt.Errorf("read spec %s: %w", specName, err)
	}
	var spec domain.RoomSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, nil, fmt.Errorf("parse spec %s: %w: %v", specName, domain.ErrMalformedSpec, err)
	}
	if spec.Duration <= 0 {
		return nil, nil, fmt.Errorf("spec %s: non-positive duration: %w", specName, domain.ErrMalformedSpec)
	}

	post := &domain.Post{}
	if spec.PostName != "" {
		post, err = c.loadPost(spec.PostName)
		if err != nil {
			return nil, nil, err
		}
	}
	return &spec, post, nil
}

// wire shape of a post resource; time is an RFC-ish date string and the
// image is referenced by bare file name.
type rawPost struct {
	Title           string `json:"title"`
	Lead            string `json:"lead"`
	Content         string `json:"content"`
	Time            string `json:"time"`
	ImageName       string `json:"imageName"`
	InitialLikes    int    `json:"initialLikes"`
	InitialDislikes int    `json:"initialDislikes"`
}

func (c *Catalog) loadPost(postName string) (*domain.Post, error) {
	raw, err := os.ReadFile(filepath.Join(c.postDir, postName))
	if err != nil {
		return nil, fmt.Errorf("read post %s: %w", postName, err)
	}
	var p rawPost
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse post %s: %w: %v", postName, domain.ErrMalformedSpec, err)
	}
	var postTime time.Time
	if p.Time != "" {
		if t, err := time.Parse(time.RFC3339, p.Time); err == nil {
			postTime = t
		}
	}
	return &domain.Post{
		ID:              TokenOf(postName),
		Time:            postTime,
		Title:           p.Title,
		Lead:            p.Lead,
		Content:         p.Content,
		ImageURL:        filepath.Join("build", "postImages", p.ImageName),
		InitialLikes:    p.InitialLikes,
		InitialDislikes: p.InitialDislikes,
	}, nil
}
