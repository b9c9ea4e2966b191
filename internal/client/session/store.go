// Package session holds the single active Credential of the process and
// keeps it in durable storage across restarts. Subsystems that depend on
// being signed in observe the store through OnChange; the store never calls
// them directly.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/client/repositories/kv"
	"github.com/dmitrijs2005/snapclient/internal/common"
	"github.com/dmitrijs2005/snapclient/internal/cryptox"
	"github.com/dmitrijs2005/snapclient/internal/dbx"
	"github.com/dmitrijs2005/snapclient/internal/logging"
)

// Observer receives the new credential after every committed change; cred
// is nil after logout. It gets its own copy. Observers run while the write
// is still serialised and must not call Login, Logout or UpdateProfile.
type Observer func(ctx context.Context, cred *models.Credential)

type Option func(*Store)

// WithSealer encrypts the persisted credential.
func WithSealer(s *cryptox.Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(st *Store) { st.log = l }
}

type observer struct {
	id int
	fn Observer
}

type Store struct {
	db     *sql.DB
	sealer *cryptox.Sealer
	now    func() time.Time
	log    logging.Logger

	// writeMu serialises persistence so that memory follows commit order.
	writeMu sync.Mutex

	mu        sync.Mutex
	current   *models.Credential
	observers []observer
	nextID    int
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now, log: logging.Discard()}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "session")
	return s
}

// Load restores the persisted credential. An absent, undecodable, invalid
// or expired value is reported as (nil, nil); only storage failures are
// errors.
func (s *Store) Load(ctx context.Context) (*models.Credential, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	raw, err := kv.NewSQLiteRepository(s.db).Get(ctx, common.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	cred := s.decode(ctx, raw)
	s.set(ctx, cred)
	return cred.Clone(), nil
}

func (s *Store) decode(ctx context.Context, raw []byte) *models.Credential {
	if raw == nil {
		return nil
	}
	if s.sealer != nil {
		plain, err := s.sealer.Open(raw)
		if err != nil {
			s.log.Warn(ctx, "stored credential cannot be unsealed", "error", err)
			return nil
		}
		raw = plain
	}

	var cred models.Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		s.log.Warn(ctx, "stored credential is corrupt", "error", err)
		return nil
	}
	if err := cred.Validate(); err != nil {
		s.log.Warn(ctx, "stored credential is incomplete", "error", err)
		return nil
	}
	if exp, ok := cred.ExpiresAt(); ok && !exp.After(s.now()) {
		s.log.Info(ctx, "stored credential has expired", "expired_at", exp)
		return nil
	}
	return &cred
}

// Login validates and persists cred, then makes it current. On failure the
// previously stored value and the in-memory state are left untouched.
func (s *Store) Login(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cred = cred.Clone()
	if err := s.persist(ctx, cred); err != nil {
		return err
	}
	s.set(ctx, cred)
	s.log.Info(ctx, "signed in", "user_id", cred.User.ID, "provider", cred.AuthProvider)
	return nil
}

// Logout removes the stored credential. Logging out twice is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return kv.NewSQLiteRepository(tx).Delete(ctx, common.CredentialKey)
	})
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if s.Current() != nil {
		s.log.Info(ctx, "signed out")
	}
	s.set(ctx, nil)
	return nil
}

// UpdateProfile replaces the cached profile of the active credential and
// persists the result. Without an active credential it only logs.
func (s *Store) UpdateProfile(ctx context.Context, p *models.Profile) error {
	if p == nil {
		return fmt.Errorf("%w: profile is required", common.ErrorValidation)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.Current()
	if cur == nil {
		s.log.Warn(ctx, "profile update without an active session", "user_id", p.ID)
		return nil
	}

	u := *p
	cur.User = &u
	if err := s.persist(ctx, cur); err != nil {
		return err
	}
	s.set(ctx, cur)
	return nil
}

// Current returns a copy of the active credential, or nil.
func (s *Store) Current() *models.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Token is the bearer token of the active credential, or "".
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// OnChange registers fn and returns a func that removes it.
func (s *Store) OnChange(fn Observer) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) persist(ctx context.Context, cred *models.Credential) error {
	blob, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if s.sealer != nil {
		if blob, err = s.sealer.Seal(blob); err != nil {
			return fmt.Errorf("seal credential: %w", err)
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return kv.NewSQLiteRepository(tx).Set(ctx, common.CredentialKey, blob)
	})
	if err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// set swaps the in-memory credential and notifies observers outside the
// state lock. Observers are skipped when nothing changed from nil to nil.
func (s *Store) set(ctx context.Context, cred *models.Credential) {
	s.mu.Lock()
	prev := s.current
	s.current = cred
	obs := append([]observer(nil), s.observers...)
	s.mu.Unlock()

	if prev == nil && cred == nil {
		return
	}
	for _, o := range obs {
		o.fn(ctx, cred.Clone())
	}
}
