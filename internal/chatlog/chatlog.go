// Package chatlog implements the append-only, per-room threaded store of
// comments, replies, and action updates, and its time-windowed reassembly.
package chatlog

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/YatingPan/chat-room/internal/domain"
)

// Meta is the immutable session metadata carried into every windowed view.
type Meta struct {
	RoomID       string
	SpecName     string
	Name         string
	StartTime    time.Time
	Duration     int // minutes
	PostTitle    string
	BotType      string
	OutboundLink string
}

// roomLog holds one room's live discussion log.
type roomLog struct {
	meta         Meta
	participants []domain.Author

	comments []domain.LoggedComment // top-level, append order

	replies    map[int][]domain.LoggedComment // indexed by parent id
	rawReplies []domain.Reply                 // flat audit order

	actions    map[int]domain.ActionUpdate // last-write-wins per parent
	rawActions []domain.ActionUpdate       // flat audit order

	nextCommentID int // human space: 1, 2, 3, ...
	nextAgentID   int // scripted/generated space: -1, -2, -3, ...
}

// Store keeps the logs of all live rooms. All mutators for a room that has
// not been initialized return domain.ErrNotFound; callers log and continue.
type Store struct {
	mu   sync.RWMutex
	logs map[string]*roomLog
}

// NewStore creates an empty log store.
func NewStore() *Store {
	return &Store{logs: make(map[string]*roomLog)}
}

// Init creates the log for a room, materializing the scripted comment tree
// into the log's initial top-level entries. Each scripted entry's relative
// offset becomes an absolute time anchored to startTime; ids are assigned
// from the agent space so they never collide with human comments.
func (s *Store) Init(meta Meta, scripted []domain.ScriptedComment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &roomLog{
		meta:          meta,
		replies:       make(map[int][]domain.LoggedComment),
		actions:       make(map[int]domain.ActionUpdate),
		nextCommentID: 1,
		nextAgentID:   -1,
	}
	for _, sc := range scripted {
		l.comments = append(l.comments, l.materialize(sc, meta.StartTime))
	}
	s.logs[meta.RoomID] = l
}

func (l *roomLog) materialize(sc domain.ScriptedComment, startTime time.Time) domain.LoggedComment {
	lc := domain.LoggedComment{
		ID:         l.nextAgentID,
		IsAgent:    true,
		Time:       startTime.Add(time.Duration(sc.Offset) * time.Second),
		AuthorName: sc.BotName,
		Content:    sc.Content,
	}
	l.nextAgentID--
	for _, r := range sc.Replies {
		lc.Replies = append(lc.Replies, l.materialize(r, startTime))
	}
	return lc
}

// Remove drops a room's log. Safe to call for unknown rooms.
func (s *Store) Remove(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, roomID)
}

func (s *Store) get(roomID string) (*roomLog, error) {
	l, ok := s.logs[roomID]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", roomID, domain.ErrNotFound)
	}
	return l, nil
}

// AppendTopLevelComment stores a human-authored comment at the end of the
// top-level sequence, assigning the next id in the human space. The caller
// supplies the timestamp; ties are kept in insertion order by windowing.
func (s *Store) AppendTopLevelComment(roomID string, c domain.Comment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(roomID)
	if err != nil {
		return domain.Comment{}, err
	}
	c.ID = l.nextCommentID
	l.nextCommentID++
	l.comments = append(l.comments, domain.LoggedComment{
		ID:         c.ID,
		Time:       c.Time,
		AuthorName: c.Author.Name,
		Content:    c.Content,
	})
	return c, nil
}

// AppendAgentComment stores a scripted/generated top-level comment, assigning
// the next id in the agent space.
func (s *Store) AppendAgentComment(roomID, botName, content string, at time.Time) (domain.LoggedComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(roomID)
	if err != nil {
		return domain.LoggedComment{}, err
	}
	lc := domain.LoggedComment{
		ID:         l.nextAgentID,
		IsAgent:    true,
		Time:       at,
		AuthorName: botName,
		Content:    content,
	}
	l.nextAgentID--
	l.comments = append(l.comments, lc)
	return lc, nil
}

// AppendReply stores a reply in the flat audit sequence and indexes it under
// its parent id. The reply's comment gets the next human-space id.
func (s *Store) AppendReply(roomID string, r domain.Reply) (domain.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(roomID)
	if err != nil {
		return domain.Reply{}, err
	}
	r.Comment.ID = l.nextCommentID
	l.nextCommentID++
	l.rawReplies = append(l.rawReplies, r)
	l.replies[r.ParentID] = append(l.replies[r.ParentID], domain.LoggedComment{
		ID:         r.Comment.ID,
		Time:       r.Comment.Time,
		AuthorName: r.Comment.Author.Name,
		Content:    r.Comment.Content,
	})
	return r, nil
}

// RecordActionUpdate appends to the audit trail and replaces the per-parent
// projection. An unknown parent id yields domain.ErrNotFound.
func (s *Store) RecordActionUpdate(roomID string, u domain.ActionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(roomID)
	if err != nil {
		return err
	}
	if !l.hasTopLevel(u.ParentCommentID) {
		return fmt.Errorf("parent comment %d: %w", u.ParentCommentID, domain.ErrNotFound)
	}
	l.rawActions = append(l.rawActions, u)
	l.actions[u.ParentCommentID] = u
	return nil
}

func (l *roomLog) hasTopLevel(id int) bool {
	for _, c := range l.comments {
		if c.ID == id {
			return true
		}
	}
	return false
}

// AppendParticipant records a participant on the room's roster.
func (s *Store) AppendParticipant(roomID string, a domain.Author) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.get(roomID)
	if err != nil {
		return err
	}
	l.participants = append(l.participants, a)
	return nil
}

// Comments returns a copy of the room's top-level sequence in append order.
func (s *Store) Comments(roomID string) ([]domain.LoggedComment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.get(roomID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LoggedComment, len(l.comments))
	copy(out, l.comments)
	return out, nil
}

// RawReplies returns a copy of the room's reply audit sequence.
func (s *Store) RawReplies(roomID string) ([]domain.Reply, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.get(roomID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reply, len(l.rawReplies))
	copy(out, l.rawReplies)
	return out, nil
}

// RawActions returns a copy of the room's action-update audit sequence.
func (s *Store) RawActions(roomID string) ([]domain.ActionUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.get(roomID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ActionUpdate, len(l.rawActions))
	copy(out, l.rawActions)
	return out, nil
}

// Action returns the effective (latest) action state for a parent comment.
func (s *Store) Action(roomID string, parentID int) (domain.ActionUpdate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.get(roomID)
	if err != nil {
		return domain.ActionUpdate{}, false, err
	}
	u, ok := l.actions[parentID]
	return u, ok, nil
}

// AssembleWindow returns session metadata plus the top-level entries whose
// elapsed time in minutes falls in [startMin, endMin), each with its replies
// attached sorted time-ascending. The top-level order is time-ascending with
// insertion order breaking ties. Pure read; the underlying log is unchanged.
func (s *Store) AssembleWindow(roomID string, startMin, endMin int) (domain.WindowedLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, err := s.get(roomID)
	if err != nil {
		return domain.WindowedLog{}, err
	}

	w := domain.WindowedLog{
		RoomID:       l.meta.RoomID,
		SpecName:     l.meta.SpecName,
		Name:         l.meta.Name,
		StartTime:    l.meta.StartTime,
		Duration:     l.meta.Duration,
		PostTitle:    l.meta.PostTitle,
		BotType:      l.meta.BotType,
		OutboundLink: l.meta.OutboundLink,
		Participants: append([]domain.Author(nil), l.participants...),
	}

	ordered := make([]domain.LoggedComment, len(l.comments))
	copy(ordered, l.comments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Time.Before(ordered[j].Time)
	})

	for _, c := range ordered {
		elapsed := int(c.Time.Sub(l.meta.StartTime).Minutes())
		if elapsed < startMin || elapsed >= endMin {
			continue
		}
		if reps := l.replies[c.ID]; len(reps) > 0 {
			attached := make([]domain.LoggedComment, 0, len(c.Replies)+len(reps))
			attached = append(attached, c.Replies...)
			attached = append(attached, reps...)
			sort.SliceStable(attached, func(i, j int) bool {
				return attached[i].Time.Before(attached[j].Time)
			})
			c.Replies = attached
		}
		w.Comments = append(w.Comments, c)
	}
	return w, nil
}
