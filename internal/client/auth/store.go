package auth

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/zalando/go-keyring"
)

const keyringUser = "bearer-token"

// TokenStore keeps the bearer token in the OS keyring.
type TokenStore struct {
	service string
}

// NewTokenStore returns a store under service (common.KeyringService when
// empty).
func NewTokenStore(service string) *TokenStore {
	if service == "" {
		service = common.KeyringService
	}
	return &TokenStore{service: service}
}

// Get returns common.ErrNoToken when nothing is stored.
func (s *TokenStore) Get() (string, error) {
	token, err := keyring.Get(s.service, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", common.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return token, nil
}

func (s *TokenStore) Set(token string) error {
	if err := keyring.Set(s.service, keyringUser, token); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

// Delete removes the stored token. Deleting a missing token is not an error.
func (s *TokenStore) Delete() error {
	err := keyring.Delete(s.service, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// Resolve picks the explicit token when set, otherwise the stored one.
func Resolve(explicit string, store *TokenStore) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if store == nil {
		return "", common.ErrNoToken
	}
	return store.Get()
}
