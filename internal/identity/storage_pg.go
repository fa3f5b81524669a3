package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGStorage keeps sessions in the identity_sessions table.
type PGStorage struct {
	DB *sql.DB
}

func NewPGStorage(db *sql.DB) *PGStorage { return &PGStorage{DB: db} }

func (p *PGStorage) Load(ctx context.Context, key string) (Session, bool, error) {
	var raw []byte
	err := p.DB.QueryRowContext(ctx,
		`SELECT payload FROM identity_sessions WHERE tab_id = $1`, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("select session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, false, fmt.Errorf("decode session: %w", err)
	}
	return sess, true, nil
}

func (p *PGStorage) Save(ctx context.Context, key string, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = p.DB.ExecContext(ctx, `
		INSERT INTO identity_sessions (tab_id, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tab_id) DO UPDATE
		SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		key, raw, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (p *PGStorage) Delete(ctx context.Context, key string) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM identity_sessions WHERE tab_id = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
