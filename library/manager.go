package library

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Seeded administrator, created when a store has no admin at all.
// The password is a setup-time secret and is expected to be rotated.
const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// LibraryManager exposes the catalog, account, circulation and admin operations
// over an explicitly supplied Store. Every operation is one store transaction.
type LibraryManager struct {
	store  Store
	log    logrus.FieldLogger
	hasher Hasher
	now    func() time.Time
}

// Option customizes a LibraryManager.
type Option func(*LibraryManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(lm *LibraryManager) { lm.log = l }
}

// WithHasher replaces the bcrypt digest.
func WithHasher(h Hasher) Option {
	return func(lm *LibraryManager) { lm.hasher = h }
}

// WithClock sets the time source used for loan timestamps.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

// NewLibraryManager wraps store and seeds the default admin if the store has none.
func NewLibraryManager(ctx context.Context, store Store, opts ...Option) (*LibraryManager, error) {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	lm := &LibraryManager{
		store:  store,
		log:    silent,
		hasher: BcryptHasher{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(lm)
	}

	if err := lm.bootstrap(ctx); err != nil {
		return nil, err
	}
	return lm, nil
}

// Open opens the SQLite database at dbPath and builds a manager on it.
func Open(ctx context.Context, dbPath string, opts ...Option) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, storeFailure(err)
	}
	lm, err := NewLibraryManager(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return lm, nil
}

// Close closes the underlying store.
func (lm *LibraryManager) Close() error { return lm.store.Close() }

func (lm *LibraryManager) update(ctx context.Context, fn func(Tx) error) error {
	return storeFailure(lm.store.Update(ctx, fn))
}

func (lm *LibraryManager) view(ctx context.Context, fn func(Tx) error) error {
	return storeFailure(lm.store.View(ctx, fn))
}

// refused logs a rejected operation at the level its kind deserves and returns err.
func (lm *LibraryManager) refused(op string, err error, fields logrus.Fields) error {
	entry := lm.log.WithFields(fields).WithField("op", op).WithError(err)
	if KindOf(err) == KindStoreUnavailable {
		entry.Error("operation failed")
	} else {
		entry.Warn("operation refused")
	}
	return err
}

func (lm *LibraryManager) bootstrap(ctx context.Context) error {
	var admins int
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		admins, err = tx.CountAdmins()
		return err
	})
	if err != nil {
		return lm.refused("bootstrap", err, nil)
	}
	if admins > 0 {
		return nil
	}

	digest, err := lm.hasher.Digest(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("digest default admin password: %w", err)
	}

	var seeded bool
	err = lm.update(ctx, func(tx Tx) error {
		n, err := tx.CountAdmins()
		if err != nil || n > 0 {
			return err
		}
		if _, err := tx.InsertUser(&User{Username: DefaultAdminUsername, PasswordDigest: digest, Role: RoleAdmin}); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		seeded = true
		return nil
	})
	if err != nil {
		return lm.refused("bootstrap", err, nil)
	}
	if seeded {
		lm.log.WithField("username", DefaultAdminUsername).Warn("seeded default admin account; rotate its password")
	}
	return nil
}
