package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/sagekit/sagekit/pkg/config"
	"github.com/sagekit/sagekit/pkg/db"
	"github.com/sagekit/sagekit/pkg/event"
	"github.com/sagekit/sagekit/pkg/models"
	"github.com/sagekit/sagekit/pkg/transport"
)

// AuthService tracks the signed-in identity reported by the host and owns the
// locally cached user profile. An identity change invalidates every
// user-scoped store through the reset hook.
type AuthService struct {
	transport transport.Transport
	emitter   *event.Emitter
	profiles  *db.ProfileStore
	cfg       *config.AppConfig
	logger    *slog.Logger

	// onReset is invoked with the new user id after the identity changed.
	onReset func(userID string)

	mu      sync.Mutex
	current models.IdentityInfo

	unsub func()
}

func NewAuthService(t transport.Transport, emitter *event.Emitter, profiles *db.ProfileStore, cfg *config.AppConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		transport: t,
		emitter:   emitter,
		profiles:  profiles,
		cfg:       cfg,
		logger:    logger,
		current:   models.Anonymous(),
	}
}

// SetResetHook registers the callback run after an identity change. Must be
// called before Start.
func (s *AuthService) SetResetHook(fn func(userID string)) {
	s.onReset = fn
}

// Start subscribes to host identity notifications and performs the initial
// identity read.
func (s *AuthService) Start(ctx context.Context) error {
	s.unsub = s.transport.Subscribe(transport.EventIdentityChanged, func(payload json.RawMessage) {
		var info models.IdentityInfo
		if err := json.Unmarshal(payload, &info); err != nil {
			s.logger.Warn("bad IdentityChanged payload", "error", err)
			return
		}

		// The host settles sign-in state asynchronously; reading back too
		// early can still observe the previous identity. Wait the configured
		// settle delay, then trust a fresh read over the event payload.
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.IdentitySettleDelay()):
			}
			if err := s.Sync(ctx); err != nil {
				s.logger.Warn("identity sync after change failed", "error", err)
				s.apply(info)
			}
		}()
	})

	return s.Sync(ctx)
}

// Stop releases the event subscription.
func (s *AuthService) Stop() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// Current returns the identity as last observed.
func (s *AuthService) Current() models.IdentityInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Sync reads the identity from the host and applies it.
func (s *AuthService) Sync(ctx context.Context) error {
	raw, err := s.transport.Call(ctx, transport.CmdIdentity, nil)
	if err != nil {
		return err
	}

	var info models.IdentityInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return err
	}

	s.apply(info)
	return nil
}

// apply installs a new identity. Re-applying the current identity is a no-op:
// no events, no resets.
func (s *AuthService) apply(info models.IdentityInfo) {
	if info.ID == "" {
		info = models.Anonymous()
	}

	s.mu.Lock()
	if s.current.ID == info.ID {
		s.current = info // expiration may have refreshed
		s.mu.Unlock()
		return
	}
	s.current = info
	s.mu.Unlock()

	s.logger.Info("identity changed", "user", info.ID, "authenticated", info.IsAuthenticated())

	if s.onReset != nil {
		s.onReset(info.ID)
	}
	s.emitter.Emit(event.IdentityChangedEvent{ID: info.ID, Expiration: info.Expiration})
}

// SignIn asks the host to begin its sign-in flow. The resulting identity
// arrives later via the IdentityChanged event.
func (s *AuthService) SignIn(ctx context.Context) error {
	_, err := s.transport.Call(ctx, transport.CmdSignIn, nil)
	return err
}

// Logout drops the host-side session.
func (s *AuthService) Logout(ctx context.Context) error {
	_, err := s.transport.Call(ctx, transport.CmdLogout, nil)
	return err
}

// GetUser returns the signed-in user's profile, refreshing the local cache on
// success and falling back to the cached snapshot when the host is
// unreachable.
func (s *AuthService) GetUser(ctx context.Context) (*models.UserInfo, error) {
	current := s.Current()

	raw, err := s.transport.Call(ctx, transport.CmdGetUser, nil)
	if err != nil {
		if cached, cerr := s.profiles.Get(current.ID); cerr == nil {
			s.logger.Warn("get_user failed, serving cached profile", "user", current.ID, "error", err)
			return cached, nil
		}
		return nil, err
	}

	var info models.UserInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}

	if err := s.profiles.Put(&info); err != nil {
		s.logger.Warn("cache user profile failed", "user", info.ID, "error", err)
	} else {
		s.emitter.Emit(event.UserProfileChangedEvent{UserID: info.ID})
	}
	return &info, nil
}
