package stepup

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashVerifier checks secrets against a bcrypt hash held locally, for
// deployments where the master key is provisioned with the CLI config.
type HashVerifier struct {
	hash []byte
}

var _ Verifier = HashVerifier{}

func NewHashVerifier(hash string) (HashVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return HashVerifier{}, err
	}
	return HashVerifier{hash: []byte(hash)}, nil
}

// HashSecret produces a hash for NewHashVerifier. cost <= 0 uses bcrypt.DefaultCost.
func HashSecret(secret string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(b), err
}

func (h HashVerifier) Verify(_ context.Context, secret string) (Result, error) {
	err := bcrypt.CompareHashAndPassword(h.hash, []byte(secret))
	switch {
	case err == nil:
		return Result{OK: true}, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return Result{OK: false}, nil
	default:
		return Result{}, err
	}
}
