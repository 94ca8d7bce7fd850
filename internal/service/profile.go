package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

// sharedFetchTimeout bounds a coalesced backend fetch once it no longer follows a caller's context.
const sharedFetchTimeout = 30 * time.Second

// ProfileLoaderOptions groups dependencies for ProfileLoader.
type ProfileLoaderOptions struct {
	Source ports.ProfileSource
	// Cache is optional. Entries are keyed by subject id and hold no credentials.
	Cache    ports.ProfileCache
	CacheTTL time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

// ProfileLoader fetches the backend profile for an authenticated session and attaches it.
// Concurrent loads for the same subject share one backend request.
type ProfileLoader struct {
	source   ports.ProfileSource
	cache    ports.ProfileCache
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
	group    singleflight.Group
}

// NewProfileLoader constructs a ProfileLoader.
func NewProfileLoader(opts ProfileLoaderOptions) *ProfileLoader {
	l := &ProfileLoader{
		source:   opts.Source,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

type profileRequest struct {
	subject string
	access  string
}

func requestFor(sess *Session) (profileRequest, error) {
	id, ok := sess.Identity()
	if !ok {
		return profileRequest{}, apperrors.SessionMissing("profile requires an authenticated session")
	}
	access, ok := sess.AccessToken()
	if !ok {
		return profileRequest{}, apperrors.SessionMissing("profile requires an access token")
	}
	return profileRequest{subject: id.SubjectID, access: access}, nil
}

// Load attaches a profile to sess, preferring a cached copy.
func (l *ProfileLoader) Load(ctx context.Context, sess *Session) (domainauth.Profile, error) {
	req, err := requestFor(sess)
	if err != nil {
		return domainauth.Profile{}, err
	}

	if p, ok := l.cached(ctx, req.subject); ok {
		return p, sess.SetProfile(p)
	}

	// Without a subject there is no safe key to share a fetch under.
	if req.subject == "" {
		p, err := l.fetch(ctx, req)
		if err != nil {
			return domainauth.Profile{}, err
		}
		return p, sess.SetProfile(p)
	}

	// The shared fetch is detached from any one caller; each caller still stops
	// waiting when its own context ends.
	ch := l.group.DoChan(req.subject, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return l.fetch(fetchCtx, req)
	})
	select {
	case <-ctx.Done():
		return domainauth.Profile{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domainauth.Profile{}, res.Err
		}
		p := res.Val.(domainauth.Profile)
		return p, sess.SetProfile(p)
	}
}

func (l *ProfileLoader) fetch(ctx context.Context, req profileRequest) (domainauth.Profile, error) {
	p, err := l.source.FetchProfile(ctx, req.access)
	if err != nil {
		return domainauth.Profile{}, err
	}
	p.FetchedAt = l.now().UTC()
	l.store(ctx, req.subject, p)
	return p, nil
}

// Refresh drops any cached copy and loads the profile again.
func (l *ProfileLoader) Refresh(ctx context.Context, sess *Session) (domainauth.Profile, error) {
	req, err := requestFor(sess)
	if err != nil {
		return domainauth.Profile{}, err
	}
	l.forget(ctx, req.subject)
	return l.Load(ctx, sess)
}

// SwitchOrganization changes the user's recent organization on the backend and
// stores the updated profile.
func (l *ProfileLoader) SwitchOrganization(ctx context.Context, sess *Session, orgID string) (domainauth.Profile, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return domainauth.Profile{}, apperrors.ValidationField("organizationId", "organization id is required")
	}
	req, err := requestFor(sess)
	if err != nil {
		return domainauth.Profile{}, err
	}

	p, err := l.source.SwitchOrganization(ctx, req.access, orgID)
	if err != nil {
		return domainauth.Profile{}, err
	}
	p.FetchedAt = l.now().UTC()
	l.store(ctx, req.subject, p)
	return p, sess.SetProfile(p)
}

func (l *ProfileLoader) cached(ctx context.Context, subject string) (domainauth.Profile, bool) {
	if l.cache == nil || subject == "" {
		return domainauth.Profile{}, false
	}
	p, err := l.cache.Get(ctx, subject)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			l.logger.DebugContext(ctx, "profile cache miss", "subject_id", subject, "error", err)
		}
		return domainauth.Profile{}, false
	}
	return p, true
}

func (l *ProfileLoader) store(ctx context.Context, subject string, p domainauth.Profile) {
	if l.cache == nil || subject == "" {
		return
	}
	if err := l.cache.Set(ctx, subject, p, l.cacheTTL); err != nil {
		l.logger.WarnContext(ctx, "failed to cache profile", "subject_id", subject, "error", err)
	}
}

func (l *ProfileLoader) forget(ctx context.Context, subject string) {
	if l.cache == nil || subject == "" {
		return
	}
	if err := l.cache.Delete(ctx, subject); err != nil {
		l.logger.WarnContext(ctx, "failed to evict cached profile", "subject_id", subject, "error", err)
	}
}
