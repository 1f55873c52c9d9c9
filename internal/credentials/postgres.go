package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodgepole/rentroll/internal/crypto"
	"github.com/lodgepole/rentroll/internal/domain"
)

// PostgresResolver implements Resolver over the owner_credentials table,
// decrypting stored secrets with the application encryptor.
type PostgresResolver struct {
	pool      *pgxpool.Pool
	encryptor crypto.Encryptor
}

// Compile-time check that PostgresResolver implements Resolver.
var _ Resolver = (*PostgresResolver)(nil)

// NewPostgresResolver creates a database-backed credential resolver.
func NewPostgresResolver(pool *pgxpool.Pool, encryptor crypto.Encryptor) *PostgresResolver {
	return &PostgresResolver{pool: pool, encryptor: encryptor}
}

// secretPayload is the JSON shape stored encrypted in secret_enc.
type secretPayload struct {
	APIKey  string `json:"api_key"`
	RealmID string `json:"realm_id,omitempty"`
}

// Get returns the owner's decrypted credentials for the provider.
func (r *PostgresResolver) Get(ctx context.Context, ownerID uuid.UUID, provider Provider) (*Credentials, error) {
	var secretEnc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT secret_enc FROM owner_credentials WHERE owner_id = $1 AND provider = $2`,
		ownerID, string(provider),
	).Scan(&secretEnc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, domain.Unavailable(err, "credentials.get", "failed to query credentials")
	}

	plaintext, err := r.encryptor.Decrypt(secretEnc)
	if err != nil {
		return nil, domain.Internal(err, "credentials.get", "failed to decrypt credentials")
	}

	var payload secretPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, domain.Internal(err, "credentials.get", "malformed credential payload")
	}
	if payload.APIKey == "" {
		return nil, domain.Internal(fmt.Errorf("empty api_key for %s", provider), "credentials.get", "malformed credential payload")
	}

	return &Credentials{
		OwnerID:  ownerID,
		Provider: provider,
		APIKey:   payload.APIKey,
		RealmID:  payload.RealmID,
	}, nil
}

// Put encrypts and upserts credentials for an owner/provider pair. Used by
// the integration-connect flow and test setup.
func (r *PostgresResolver) Put(ctx context.Context, creds *Credentials) error {
	plaintext, err := json.Marshal(secretPayload{APIKey: creds.APIKey, RealmID: creds.RealmID})
	if err != nil {
		return domain.Internal(err, "credentials.put", "failed to encode credentials")
	}

	secretEnc, err := r.encryptor.Encrypt(plaintext)
	if err != nil {
		return domain.Internal(err, "credentials.put", "failed to encrypt credentials")
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO owner_credentials (owner_id, provider, secret_enc)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (owner_id, provider)
		 DO UPDATE SET secret_enc = EXCLUDED.secret_enc, updated_at = now()`,
		creds.OwnerID, string(creds.Provider), secretEnc,
	)
	if err != nil {
		return domain.Unavailable(err, "credentials.put", "failed to store credentials")
	}
	return nil
}
