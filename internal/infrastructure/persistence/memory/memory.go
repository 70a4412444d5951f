// Package memory provides in-process repositories with the same locking
// semantics as the Postgres ones: every mutation runs under one mutex, the way
// SELECT ... FOR UPDATE serializes writers on a row. Used by tests and by the
// api binary when started with STORAGE=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USERS: profile, sessions, quota
// ══════════════════════════════════════════════════════════════════════════════

type user struct {
	state progression.State
	sub   quota.Subscription
	usage quota.Usage
}

// Store holds users and their sessions.
type Store struct {
	mu       sync.Mutex
	users    map[shared.UserID]*user
	sessions map[string]*progression.Session

	failErr   error
	failTimes int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:    map[shared.UserID]*user{},
		sessions: map[string]*progression.Session{},
	}
}

// AddUser creates a fresh free-plan account.
func (s *Store) AddUser(id shared.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &user{
		state: progression.NewState(),
		sub:   quota.Subscription{Plan: quota.PlanFree, Status: quota.StatusNone},
	}
}

// SetSubscription changes the plan of an existing user.
func (s *Store) SetSubscription(id shared.UserID, sub quota.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.sub = sub
	}
}

// FailNext makes the next n transactional calls return err.
func (s *Store) FailNext(err error, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr, s.failTimes = err, n
}

func (s *Store) injected() error {
	if s.failTimes > 0 {
		s.failTimes--
		return s.failErr
	}
	return nil
}

// Profiles returns the profile repository view.
func (s *Store) Profiles() progression.ProfileRepository { return profiles{s} }

// Sessions returns the session repository view.
func (s *Store) Sessions() progression.SessionRepository { return sessions{s} }

// Quota returns the quota repository view.
func (s *Store) Quota() quota.Repository { return quotas{s} }

type profiles struct{ s *Store }

func (p profiles) Get(_ context.Context, userID shared.UserID) (*progression.Profile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	u, ok := p.s.users[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	st := u.state
	st.BadgesUnlocked = append([]string(nil), st.BadgesUnlocked...)
	return &progression.Profile{UserID: userID, State: st}, nil
}

func (p profiles) ApplyReward(_ context.Context, userID shared.UserID, sessionID string, fn progression.RewardFunc) (progression.XPResult, bool, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	if err := p.s.injected(); err != nil {
		return progression.XPResult{}, false, err
	}
	u, ok := p.s.users[userID]
	if !ok {
		return progression.XPResult{}, false, shared.ErrProfileNotFound
	}
	sess, ok := p.s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return progression.XPResult{}, false, shared.NewDomainError("progression", "ApplyReward", shared.ErrNotFound, "session not found")
	}
	if sess.IsRewarded() && sess.Reward != nil {
		return *sess.Reward, true, nil
	}

	r, err := fn(u.state, *sess)
	if err != nil {
		return progression.XPResult{}, false, err
	}
	u.state = r.Next
	now := time.Now().UTC()
	res := r.Result
	sess.RewardedAt = &now
	sess.Reward = &res
	return r.Result, false, nil
}

type sessions struct{ s *Store }

func (r sessions) Create(_ context.Context, sess *progression.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[sess.UserID]; !ok {
		return shared.ErrProfileNotFound
	}
	if _, ok := r.s.sessions[sess.ID]; ok {
		return shared.NewDomainError("progression", "CreateSession", shared.ErrAlreadyExists, "session already exists")
	}
	cp := *sess
	r.s.sessions[sess.ID] = &cp
	return nil
}

func (r sessions) Get(_ context.Context, id string) (*progression.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, shared.NewDomainError("progression", "GetSession", shared.ErrNotFound, "session not found")
	}
	cp := *sess
	return &cp, nil
}

func (r sessions) ListByUser(_ context.Context, userID shared.UserID) ([]progression.SessionRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []progression.SessionRecord
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			out = append(out, sess.Record())
		}
	}
	progression.SortByCompletion(out)
	return out, nil
}

func (r sessions) ListPendingRewards(_ context.Context, olderThan time.Time, limit int) ([]*progression.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*progression.Session
	for _, sess := range r.s.sessions {
		if !sess.IsRewarded() && sess.CompletedAt.Before(olderThan) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type quotas struct{ s *Store }

func (q quotas) Get(_ context.Context, userID shared.UserID) (*quota.Account, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	u, ok := q.s.users[userID]
	if !ok {
		return nil, shared.ErrProfileNotFound
	}
	return &quota.Account{UserID: userID, Subscription: u.sub, Usage: u.usage}, nil
}

func (q quotas) CheckAndIncrement(_ context.Context, userID shared.UserID, decide func(quota.Account) quota.Decision) (quota.Decision, error) {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()
	if err := q.s.injected(); err != nil {
		return quota.Decision{}, err
	}
	u, ok := q.s.users[userID]
	if !ok {
		return quota.Decision{}, shared.ErrProfileNotFound
	}
	d := decide(quota.Account{UserID: userID, Subscription: u.sub, Usage: u.usage})
	if d.Write {
		u.usage = d.Usage
	}
	return d, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROADMAP
// ══════════════════════════════════════════════════════════════════════════════

// Roadmap holds ideas and votes.
type Roadmap struct {
	mu    sync.Mutex
	ideas map[string]*roadmap.Idea
	votes map[string]map[shared.UserID]struct{}

	contend int
}

// NewRoadmap creates an empty roadmap store.
func NewRoadmap() *Roadmap {
	return &Roadmap{
		ideas: map[string]*roadmap.Idea{},
		votes: map[string]map[shared.UserID]struct{}{},
	}
}

// ContendNext makes the next n toggles fail with transaction contention.
func (r *Roadmap) ContendNext(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contend = n
}

// SetVoteCount overwrites the cached counter without touching vote records.
func (r *Roadmap) SetVoteCount(ideaID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idea, ok := r.ideas[ideaID]; ok {
		idea.VoteCount = n
	}
}

func (r *Roadmap) Create(_ context.Context, idea *roadmap.Idea) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ideas[idea.ID]; ok {
		return shared.NewDomainError("roadmap", "Create", shared.ErrAlreadyExists, "idea already exists")
	}
	cp := *idea
	r.ideas[idea.ID] = &cp
	r.votes[idea.ID] = map[shared.UserID]struct{}{}
	return nil
}

func (r *Roadmap) Get(_ context.Context, id string) (*roadmap.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idea, ok := r.ideas[id]
	if !ok {
		return nil, shared.ErrIdeaNotFound
	}
	cp := *idea
	return &cp, nil
}

func (r *Roadmap) Toggle(_ context.Context, ideaID string, userID shared.UserID) (roadmap.ToggleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.contend > 0 {
		r.contend--
		return roadmap.ToggleResult{}, shared.NewDomainError("roadmap", "Toggle", shared.ErrTransactionContention, "could not lock idea")
	}
	idea, ok := r.ideas[ideaID]
	if !ok {
		return roadmap.ToggleResult{}, shared.ErrIdeaNotFound
	}
	voters := r.votes[ideaID]
	if _, voted := voters[userID]; voted {
		delete(voters, userID)
		idea.VoteCount = max(idea.VoteCount-1, 0)
		return roadmap.ToggleResult{IdeaID: ideaID, VoteCount: idea.VoteCount, Upvoted: false}, nil
	}
	voters[userID] = struct{}{}
	idea.VoteCount++
	return roadmap.ToggleResult{IdeaID: ideaID, VoteCount: idea.VoteCount, Upvoted: true}, nil
}

func (r *Roadmap) List(_ context.Context, limit int) ([]*roadmap.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*roadmap.Idea, 0, len(r.ideas))
	for _, idea := range r.ideas {
		cp := *idea
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VoteCount != out[j].VoteCount {
			return out[i].VoteCount > out[j].VoteCount
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Roadmap) UpvotedBy(_ context.Context, userID shared.UserID) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]bool{}
	for id, voters := range r.votes {
		if _, ok := voters[userID]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *Roadmap) Divergences(context.Context) ([]roadmap.Divergence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []roadmap.Divergence
	for id, idea := range r.ideas {
		if n := len(r.votes[id]); n != idea.VoteCount {
			out = append(out, roadmap.Divergence{IdeaID: id, VoteCount: idea.VoteCount, Actual: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdeaID < out[j].IdeaID })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// Recorder is an EventPublisher that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

// Publish implements shared.EventPublisher.
func (r *Recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []shared.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}
