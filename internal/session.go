package internal

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
	"github.com/jamesprial/go-reddit-session/pkg/types"
)

// TokenSession owns the live token of a client and serializes its refresh.
// Concurrent callers that find the token stale share one grant exchange.
type TokenSession struct {
	manager   *TokenManager
	creds     *types.Credentials
	userAgent string
	logger    *zap.Logger

	mu         sync.Mutex
	token      *types.Token
	desc       types.AuthDescriptor
	generation uint64

	group singleflight.Group
}

// NewTokenSession creates a session for the given credentials and user descriptor.
func NewTokenSession(manager *TokenManager, creds *types.Credentials, userAgent string, desc types.AuthDescriptor) *TokenSession {
	return &TokenSession{
		manager:   manager,
		creds:     creds,
		userAgent: userAgent,
		logger:    manager.logger,
		desc:      desc,
	}
}

// Token returns a live token, performing at most one grant exchange for all
// callers that arrive while the token is stale.
//
// The exchange runs detached from any single caller's cancellation so one
// caller giving up does not fail the others; each caller still stops waiting
// when its own context is done.
func (s *TokenSession) Token(ctx context.Context) (*types.Token, error) {
	s.mu.Lock()
	current, generation := s.token, s.generation
	s.mu.Unlock()

	if !s.manager.Expired(current) {
		return current, nil
	}

	key := strconv.FormatUint(generation, 10)
	exchangeCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.exchange(exchangeCtx, generation)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *TokenSession) exchange(ctx context.Context, generation uint64) (*types.Token, error) {
	s.mu.Lock()
	current, desc := s.token, s.desc
	stale := s.generation != generation
	s.mu.Unlock()

	if stale {
		// Reset landed before this flight started: join the flight for the
		// new descriptor instead of running a grant whose token is discarded.
		return s.Token(ctx)
	}

	tok, err := s.manager.ObtainOrRefresh(ctx, s.userAgent, current, s.creds, desc)
	if err != nil {
		var authErr *pkgerrs.AuthError
		if errors.As(err, &authErr) {
			// A rejected grant leaves no usable token behind.
			s.mu.Lock()
			if s.generation == generation {
				s.token = nil
			}
			s.mu.Unlock()
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == generation {
		s.token = tok
	} else {
		s.logger.Debug("discarding token obtained for a replaced descriptor",
			zap.Uint64("generation", generation),
			zap.Uint64("current_generation", s.generation),
		)
	}
	return tok, nil
}

// Reset replaces the user descriptor and discards the live token.
func (s *TokenSession) Reset(desc types.AuthDescriptor) {
	s.mu.Lock()
	s.desc = desc
	s.token = nil
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	s.logger.Debug("token session reset", zap.Uint64("generation", generation))
}

// Install sets the live token and descriptor together, e.g. after an
// authorization code exchange.
func (s *TokenSession) Install(desc types.AuthDescriptor, tok *types.Token) {
	s.mu.Lock()
	s.desc = desc
	s.token = tok
	s.generation++
	s.mu.Unlock()
}

// Current returns the live token without refreshing it.
func (s *TokenSession) Current() *types.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Descriptor returns the user descriptor in effect.
func (s *TokenSession) Descriptor() types.AuthDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}
