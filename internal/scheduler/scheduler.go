// Package scheduler arms the per-session timers that drive a discussion
// room's lifecycle: moderator interventions, transcript snapshots, and final
// teardown, all anchored to the session's start time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/YatingPan/chat-room/internal/agent"
	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/hub"
	"github.com/YatingPan/chat-room/internal/telemetry"
	"github.com/YatingPan/chat-room/internal/transcript"
)

// Deps are the collaborators a scheduler drives.
type Deps struct {
	Logs        *chatlog.Store
	Gateway     *hub.Gateway
	Transcripts *transcript.Writer
	Moderator   agent.Moderator // nil disables interventions
	Metrics     *telemetry.Metrics

	AgentTimeout time.Duration

	// OnTeardown removes the session from its registry once the final
	// snapshot is written.
	OnTeardown func(roomID string)
}

// task is one scheduled action within a session.
type task struct {
	name   string
	offset time.Duration // relative to session start
	run    func(ctx context.Context)
}

type sessionTimers struct {
	cancel context.CancelFunc
	fired  map[string]bool

	mu       sync.Mutex
	usedArgs []string
}

// Scheduler owns every live session's timer set. Timers are wall-clock,
// fire-once; teardown cancels any still-pending timers for its session.
type Scheduler struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*sessionTimers
}

// New creates a scheduler.
func New(deps Deps) *Scheduler {
	if deps.AgentTimeout <= 0 {
		deps.AgentTimeout = 45 * time.Second
	}
	return &Scheduler{
		deps:     deps,
		sessions: make(map[string]*sessionTimers),
	}
}

// SetOnTeardown installs the teardown callback. Must be called before any
// session is armed; it exists because the session registry and scheduler
// reference each other.
func (s *Scheduler) SetOnTeardown(fn func(roomID string)) {
	s.deps.OnTeardown = fn
}

// Arm schedules the full timer set for a session. Arming an already-armed
// session is a no-op, so creation cannot double-schedule.
func (s *Scheduler) Arm(meta chatlog.Meta) {
	tasks := s.plan(meta)
	s.armTasks(meta.RoomID, meta.StartTime, tasks)
}

// plan derives the timer set from the session duration. The duration is
// partitioned into three snapshot windows with marks at 20%, 50%, and 80%
// (a 10 minute room snapshots 0-2, 2-5, and 5-8), each preceded by a
// moderator intervention over everything said so far. The final snapshot at
// teardown covers the whole session with a one minute tail for comments
// landing in the closing minute.
func (s *Scheduler) plan(meta chatlog.Meta) []task {
	marks := snapshotMarks(meta.Duration)
	var tasks []task

	prev := 0
	for i, mark := range marks {
		version := i + 1
		windowStart, windowEnd := prev, mark
		prev = mark

		if s.deps.Moderator != nil && meta.BotType != "" {
			tasks = append(tasks, task{
				name:   fmt.Sprintf("intervention-%d", version),
				offset: time.Duration(mark) * time.Minute,
				run: func(ctx context.Context) {
					s.runIntervention(ctx, meta, version, mark)
				},
			})
		}
		tasks = append(tasks, task{
			name:   fmt.Sprintf("snapshot-%d", version),
			offset: time.Duration(mark) * time.Minute,
			run: func(ctx context.Context) {
				s.runSnapshot(ctx, meta.RoomID, version, windowStart, windowEnd)
			},
		})
	}

	tasks = append(tasks, task{
		name:   "teardown",
		offset: time.Duration(meta.Duration) * time.Minute,
		run: func(ctx context.Context) {
			s.runTeardown(ctx, meta.RoomID, len(marks)+1, meta.Duration+1)
		},
	})
	return tasks
}

// snapshotMarks places the intermediate snapshot minutes within a duration.
func snapshotMarks(durationMinutes int) []int {
	fractions := []float64{0.2, 0.5, 0.8}
	var marks []int
	prev := 0
	for _, f := range fractions {
		m := int(float64(durationMinutes)*f + 0.5)
		if m <= prev || m >= durationMinutes {
			continue
		}
		marks = append(marks, m)
		prev = m
	}
	return marks
}

// armTasks starts one goroutine per task, all sharing a cancellable context.
// Past-due tasks run immediately rather than scheduling into the past.
func (s *Scheduler) armTasks(roomID string, startTime time.Time, tasks []task) {
	s.mu.Lock()
	if _, armed := s.sessions[roomID]; armed {
		s.mu.Unlock()
		slog.Warn("Session already armed, ignoring", "room", roomID)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.sessions[roomID] = &sessionTimers{cancel: cancel, fired: make(map[string]bool)}
	s.mu.Unlock()

	for _, t := range tasks {
		go s.await(ctx, roomID, startTime, t)
	}
	slog.Info("Session timers armed", "room", roomID, "tasks", len(tasks))
}

func (s *Scheduler) await(ctx context.Context, roomID string, startTime time.Time, t task) {
	if wait := time.Until(startTime.Add(t.offset)); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
	if !s.markFired(roomID, t.name) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Scheduled task panicked", "room", roomID, "task", t.name, "panic", r)
		}
	}()
	t.run(ctx)
}

// markFired records that a waypoint fired. It returns false if the waypoint
// already fired or the session has been torn down, so every waypoint runs at
// most once per session and nothing runs after teardown.
func (s *Scheduler) markFired(roomID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[roomID]
	if !ok || st.fired[name] {
		return false
	}
	st.fired[name] = true
	return true
}

func (s *Scheduler) runIntervention(ctx context.Context, meta chatlog.Meta, version, mark int) {
	window, err := s.deps.Logs.AssembleWindow(meta.RoomID, 0, mark)
	if err != nil {
		slog.Error("Intervention window unavailable", "room", meta.RoomID, "version", version, "error", err)
		return
	}

	s.mu.Lock()
	st := s.sessions[meta.RoomID]
	s.mu.Unlock()
	var used []string
	if st != nil {
		st.mu.Lock()
		used = append(used, st.usedArgs...)
		st.mu.Unlock()
	}

	agentCtx, cancel := context.WithTimeout(ctx, s.deps.AgentTimeout)
	defer cancel()

	content, err := s.deps.Moderator.Generate(agentCtx, window, used)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.InterventionFailures.Inc()
		}
		slog.Error("Intervention agent failed, skipping waypoint",
			"room", meta.RoomID, "version", version, "error", err)
		return
	}

	lc, err := s.deps.Gateway.BroadcastIntervention(ctx, meta.RoomID, meta.BotType, content)
	if err != nil {
		slog.Error("Failed to broadcast intervention", "room", meta.RoomID, "version", version, "error", err)
		return
	}
	if st != nil {
		st.mu.Lock()
		st.usedArgs = append(st.usedArgs, strconv.Itoa(lc.ID))
		st.mu.Unlock()
	}
	slog.Info("Intervention delivered", "room", meta.RoomID, "version", version, "comment_id", lc.ID)
}

func (s *Scheduler) runSnapshot(ctx context.Context, roomID string, version, startMin, endMin int) {
	window, err := s.deps.Logs.AssembleWindow(roomID, startMin, endMin)
	if err != nil {
		slog.Error("Snapshot window unavailable", "room", roomID, "version", version, "error", err)
		return
	}
	path, err := s.deps.Transcripts.Write(ctx, window, version)
	if err != nil {
		if s.deps.Metrics != nil {
			s.deps.Metrics.TranscriptFailures.Inc()
		}
		slog.Error("Failed to write transcript snapshot", "room", roomID, "version", version, "error", err)
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.TranscriptWrites.Inc()
	}
	slog.Info("Transcript snapshot written", "room", roomID, "version", version, "path", path)
}

// runTeardown writes the final full-window snapshot, cancels any pending
// timers, and removes the session. Terminal: no task runs afterwards.
func (s *Scheduler) runTeardown(ctx context.Context, roomID string, version, endMin int) {
	s.runSnapshot(ctx, roomID, version, 0, endMin)

	s.mu.Lock()
	st, ok := s.sessions[roomID]
	delete(s.sessions, roomID)
	s.mu.Unlock()
	if ok {
		st.cancel()
	}

	if s.deps.OnTeardown != nil {
		s.deps.OnTeardown(roomID)
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SessionsTornDown.Inc()
	}
	slog.Info("Session torn down", "room", roomID)
}

// Cancel stops a session's pending timers without running teardown.
func (s *Scheduler) Cancel(roomID string) {
	s.mu.Lock()
	st, ok := s.sessions[roomID]
	delete(s.sessions, roomID)
	s.mu.Unlock()
	if ok {
		st.cancel()
	}
}

// Shutdown cancels every session's timers.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for roomID, st := range s.sessions {
		st.cancel()
		delete(s.sessions, roomID)
	}
}
