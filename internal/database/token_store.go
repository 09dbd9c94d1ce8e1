package database

import "context"

// TokenKey is the local_storage key holding the session token.
const TokenKey = "token"

// TokenStore keeps the session token in the local_storage table.
type TokenStore struct {
	db *DB
}

func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

// LoadToken returns "" when no token is stored.
func (s *TokenStore) LoadToken(ctx context.Context) (string, error) {
	token, _, err := s.db.GetValue(ctx, TokenKey)
	return token, err
}

func (s *TokenStore) SaveToken(ctx context.Context, token string) error {
	return s.db.SetValue(ctx, TokenKey, token)
}

func (s *TokenStore) DeleteToken(ctx context.Context) error {
	return s.db.DeleteValue(ctx, TokenKey)
}
