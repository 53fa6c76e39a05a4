package library

import "golang.org/x/crypto/bcrypt"

// Hasher turns passwords into one-way digests and checks them.
type Hasher interface {
	Digest(password string) (string, error)
	Matches(digest, password string) bool
}

// BcryptHasher is the default Hasher. A zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Digest(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h BcryptHasher) Matches(digest, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
