// Package app is the process-wide state container. It wires the realtime
// engine and the notification channel to the session lifecycle: both are
// built when a credential appears and torn down when it goes away.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/snapclient/internal/client/docstore"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/client/notify"
	"github.com/dmitrijs2005/snapclient/internal/client/realtime"
	"github.com/dmitrijs2005/snapclient/internal/client/session"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/logging"
)

// Backend is one authenticated connection to the realtime services.
type Backend interface {
	docstore.Store
	notify.PushProvider
	Close() error
}

// Connector opens a Backend for cred.
type Connector func(ctx context.Context, cred *models.Credential) (Backend, error)

type ProfileSource interface {
	Profile(ctx context.Context) (*models.Profile, error)
}

type Runtime struct {
	session  *session.Store
	profiles ProfileSource
	connect  Connector
	perm     notify.Permission
	display  notify.Displayer
	log      logging.Logger

	mu      sync.Mutex
	user    string
	backend Backend
	engine  *realtime.Engine
	channel *notify.Channel
	initErr error
	detach  func()
}

func NewRuntime(s *session.Store, profiles ProfileSource, connect Connector, perm notify.Permission, display notify.Displayer, l logging.Logger) *Runtime {
	return &Runtime{
		session:  s,
		profiles: profiles,
		connect:  connect,
		perm:     perm,
		display:  display,
		log:      l.With("module", "app"),
	}
}

// Start begins observing the session and restores a persisted credential.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.detach == nil {
		r.detach = r.session.OnChange(r.onSession)
	}
	r.mu.Unlock()

	if _, err := r.session.Load(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

// Close stops observing the session and disposes the live state.
func (r *Runtime) Close() {
	r.mu.Lock()
	detach := r.detach
	r.detach = nil
	r.mu.Unlock()

	if detach != nil {
		detach()
	}
	r.dispose(context.Background())
}

func (r *Runtime) onSession(ctx context.Context, cred *models.Credential) {
	if cred == nil {
		r.dispose(ctx)
		return
	}

	r.mu.Lock()
	same := r.backend != nil && r.user == cred.User.UserID() && r.engine.LastError() == nil
	r.mu.Unlock()
	if same {
		return
	}

	r.dispose(ctx)
	if err := r.init(ctx, cred); err != nil {
		r.log.Error(ctx, "realtime session not started", "error", err)
		r.mu.Lock()
		r.initErr = err
		r.mu.Unlock()
	}
}

func (r *Runtime) init(ctx context.Context, cred *models.Credential) error {
	backend, err := r.connect(ctx, cred)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	engine := realtime.NewEngine(backend, r.log)
	if err := engine.Start(ctx, cred); err != nil {
		_ = backend.Close()
		return err
	}

	channel := notify.NewChannel(r.perm, backend, r.display, r.log)
	if err := channel.Start(ctx); err != nil {
		engine.Stop()
		_ = backend.Close()
		return fmt.Errorf("push listener: %w", err)
	}
	channel.RegisterForPush(ctx)

	r.mu.Lock()
	r.user = cred.User.UserID()
	r.backend, r.engine, r.channel = backend, engine, channel
	r.initErr = nil
	r.mu.Unlock()

	r.log.Info(ctx, "realtime session started", "user", r.user)
	return nil
}

func (r *Runtime) dispose(ctx context.Context) {
	r.mu.Lock()
	backend, engine, channel := r.backend, r.engine, r.channel
	r.backend, r.engine, r.channel = nil, nil, nil
	r.user = ""
	r.mu.Unlock()

	if backend == nil {
		return
	}
	channel.Stop()
	channel.Reset()
	engine.Stop()
	if err := backend.Close(); err != nil {
		r.log.Warn(ctx, "backend close failed", "error", err)
	}
	r.log.Info(ctx, "realtime session disposed")
}

func (r *Runtime) Session() *session.Store { return r.session }

// Engine is the realtime engine of the current session, or nil.
func (r *Runtime) Engine() *realtime.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine
}

// Notifications is the channel of the current session, or nil.
func (r *Runtime) Notifications() *notify.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// InitError is the reason the last session failed to start, if it did.
func (r *Runtime) InitError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initErr
}

// HandleError applies the global reaction to err and returns it: an
// unauthorized response ends the session.
func (r *Runtime) HandleError(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrorUnauthorized) && r.session.Current() != nil {
		r.log.Warn(ctx, "credential rejected, signing out", "error", err)
		if lerr := r.session.Logout(ctx); lerr != nil {
			r.log.Error(ctx, "logout failed", "error", lerr)
		}
	}
	return err
}

// RefreshProfile re-fetches the signed-in profile and stores it.
func (r *Runtime) RefreshProfile(ctx context.Context) (*models.Profile, error) {
	if r.session.Current() == nil {
		return nil, common.ErrorNoSession
	}
	p, err := r.profiles.Profile(ctx)
	if err != nil {
		return nil, r.HandleError(ctx, err)
	}
	if err := r.session.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
