package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ------------------ Credentials ------------------

// Register creates a regular user account.
func (lm *LibraryManager) Register(ctx context.Context, username, password string) (int64, error) {
	return lm.createUser(ctx, username, password, RoleUser)
}

// createUser creates an account with any role. Register only ever passes
// RoleUser; the default admin is seeded separately by bootstrap.
func (lm *LibraryManager) createUser(ctx context.Context, username, password string, role Role) (int64, error) {
	in := credentials{Username: strings.TrimSpace(username), Password: password}
	if err := validateInput(&in); err != nil {
		return 0, lm.refused("register", err, logrus.Fields{"username": in.Username})
	}

	digest, err := lm.hasher.Digest(in.Password)
	if err != nil {
		return 0, fmt.Errorf("digest password: %w", err)
	}

	var id int64
	err = lm.update(ctx, func(tx Tx) error {
		var err error
		id, err = tx.InsertUser(&User{Username: in.Username, PasswordDigest: digest, Role: role})
		return err
	})
	if err != nil {
		return 0, lm.refused("register", err, logrus.Fields{"username": in.Username})
	}
	lm.log.WithFields(logrus.Fields{"user_id": id, "username": in.Username, "role": role}).Info("user registered")
	return id, nil
}

// Authenticate checks a username and password. An unknown username and a wrong
// password both yield ErrInvalidCredentials.
func (lm *LibraryManager) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	fields := logrus.Fields{"username": strings.TrimSpace(username)}
	var u *User
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		u, err = tx.UserByUsername(strings.TrimSpace(username))
		return err
	})
	switch {
	case err == nil:
	case KindOf(err) == KindNotFound:
		return Identity{}, lm.refused("authenticate", ErrInvalidCredentials, fields)
	default:
		return Identity{}, lm.refused("authenticate", err, fields)
	}

	if !lm.hasher.Matches(u.PasswordDigest, password) {
		return Identity{}, lm.refused("authenticate", ErrInvalidCredentials, fields)
	}
	return Identity{ID: u.ID, Username: u.Username, Role: u.Role}, nil
}

// ListUsers returns every account ordered by username.
func (lm *LibraryManager) ListUsers(ctx context.Context) ([]Identity, error) {
	var users []Identity
	err := lm.view(ctx, func(tx Tx) error {
		var err error
		users, err = tx.ListUsers()
		return err
	})
	return users, err
}

// ------------------ Administrative guard ------------------

// DeleteUser removes targetID on behalf of requesterID. The checks run in order:
// the target exists, it is not the requester, it has no open loans, and it is
// not the last admin.
func (lm *LibraryManager) DeleteUser(ctx context.Context, targetID, requesterID int64) error {
	fields := logrus.Fields{"user_id": targetID, "requester_id": requesterID}
	err := lm.update(ctx, func(tx Tx) error {
		target, err := tx.UserByID(targetID)
		if err != nil {
			return err
		}
		if targetID == requesterID {
			return ErrSelfDelete
		}

		open, err := tx.CountOpenLoansByUser(targetID)
		if err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("user %d: %w", targetID, ErrHasOpenLoans)
		}

		if target.Role == RoleAdmin {
			admins, err := tx.CountAdmins()
			if err != nil {
				return err
			}
			if admins <= 1 {
				return ErrLastAdmin
			}
		}
		return tx.DeleteUser(targetID)
	})
	if err != nil {
		return lm.refused("delete user", err, fields)
	}
	lm.log.WithFields(fields).Info("user deleted")
	return nil
}
