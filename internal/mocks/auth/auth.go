package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.ProfileSource = (*StaticProfileSource)(nil)
	_ ports.ProfileCache  = (*MemoryProfileCache)(nil)
	_ ports.AuditSink     = (*RecordingAuditSink)(nil)
	_ ports.AuthObserver  = (*RecordingObserver)(nil)
	_ ports.RoleMapper    = (*StaticRoleMapper)(nil)
)

// StaticProfileSource serves one profile per access token, or Default when unmapped.
type StaticProfileSource struct {
	FetchFunc  func(ctx context.Context, accessToken string) (domainauth.Profile, error)
	SwitchFunc func(ctx context.Context, accessToken, orgID string) (domainauth.Profile, error)

	Default  domainauth.Profile
	ByToken  map[string]domainauth.Profile
	FetchErr error

	mu          sync.Mutex
	fetchCalls  int
	switchCalls int
}

func (s *StaticProfileSource) FetchProfile(ctx context.Context, accessToken string) (domainauth.Profile, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.mu.Unlock()

	if s.FetchFunc != nil {
		return s.FetchFunc(ctx, accessToken)
	}
	if s.FetchErr != nil {
		return domainauth.Profile{}, s.FetchErr
	}
	if p, ok := s.ByToken[accessToken]; ok {
		return p, nil
	}
	return s.Default, nil
}

func (s *StaticProfileSource) SwitchOrganization(
	ctx context.Context,
	accessToken, orgID string,
) (domainauth.Profile, error) {
	s.mu.Lock()
	s.switchCalls++
	s.mu.Unlock()

	if s.SwitchFunc != nil {
		return s.SwitchFunc(ctx, accessToken, orgID)
	}
	p, err := s.FetchProfile(ctx, accessToken)
	if err != nil {
		return domainauth.Profile{}, err
	}
	p.RecentOrganizationID = orgID
	return p, nil
}

// FetchCalls returns how many times FetchProfile ran.
func (s *StaticProfileSource) FetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// MemoryProfileCache is an in-memory profile cache for unit tests. TTLs are recorded, not enforced.
type MemoryProfileCache struct {
	mu       sync.Mutex
	profiles map[string]domainauth.Profile
	ttls     map[string]time.Duration
}

// NewMemoryProfileCache creates an empty cache.
func NewMemoryProfileCache() *MemoryProfileCache {
	return &MemoryProfileCache{
		profiles: make(map[string]domainauth.Profile),
		ttls:     make(map[string]time.Duration),
	}
}

func (m *MemoryProfileCache) Get(_ context.Context, subjectID string) (domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[subjectID]
	if !ok {
		return domainauth.Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryProfileCache) Set(_ context.Context, subjectID string, p domainauth.Profile, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[subjectID] = p
	m.ttls[subjectID] = ttl
	return nil
}

func (m *MemoryProfileCache) Delete(_ context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, subjectID)
	delete(m.ttls, subjectID)
	return nil
}

// TTL returns the ttl the entry was stored with.
func (m *MemoryProfileCache) TTL(subjectID string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ttl, ok := m.ttls[subjectID]
	return ttl, ok
}

// ErrNotFound is returned by mocks when an entity is not present.
type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

var ErrNotFound error = notFoundError{}

// RecordingAuditSink keeps every recorded event in order.
type RecordingAuditSink struct {
	Err error

	mu     sync.Mutex
	events []domainauth.Event
}

func (r *RecordingAuditSink) Record(_ context.Context, ev domainauth.Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *RecordingAuditSink) Events() []domainauth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.Event(nil), r.events...)
}

// RecordingObserver keeps every observed event in order.
type RecordingObserver struct {
	mu     sync.Mutex
	events []domainauth.Event
}

func (r *RecordingObserver) Observe(_ context.Context, ev domainauth.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the observed events.
func (r *RecordingObserver) Events() []domainauth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.Event(nil), r.events...)
}

// Ops returns the operation of each observed event.
func (r *RecordingObserver) Ops() []domainauth.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]domainauth.Operation, 0, len(r.events))
	for _, ev := range r.events {
		ops = append(ops, ev.Op)
	}
	return ops
}

// StaticRoleMapper returns Role for every profile, or Guest for a nil profile.
type StaticRoleMapper struct {
	Role domainauth.Role
}

func (m StaticRoleMapper) Map(p *domainauth.Profile) domainauth.Role {
	if p == nil || m.Role == "" {
		return domainauth.RoleGuest
	}
	return m.Role
}
