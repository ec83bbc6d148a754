package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bountyline/internal/config"
	"bountyline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertSpace(ctx context.Context, tx *sql.Tx, s domain.Space) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO spaces(id,name,status,created_at) VALUES (?,?,?,?)`,
		s.ID, s.Name, s.Status, s.CreatedAt)
	return err
}

func (r Repo) GetSpace(ctx context.Context, id string) (domain.Space, error) {
	var s domain.Space
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM spaces WHERE id=?`, id).
		Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) SingleSpace(ctx context.Context) (domain.Space, error) {
	spaces, err := r.ListSpaces(ctx)
	if err != nil {
		return domain.Space{}, err
	}
	if len(spaces) == 0 {
		return domain.Space{}, ErrNotFound
	}
	if len(spaces) > 1 {
		return domain.Space{}, fmt.Errorf("multiple spaces exist; specify --space")
	}
	return spaces[0], nil
}

func (r Repo) ListSpaces(ctx context.Context) ([]domain.Space, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM spaces ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Space
	for rows.Next() {
		var s domain.Space
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) UpsertSpaceConfig(ctx context.Context, spaceID string, cfg *config.Config) error {
	return upsertSpaceConfig(ctx, r.DB, nil, spaceID, cfg)
}

func (r Repo) UpsertSpaceConfigTx(ctx context.Context, tx *sql.Tx, spaceID string, cfg *config.Config) error {
	return upsertSpaceConfig(ctx, nil, tx, spaceID, cfg)
}

func upsertSpaceConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, spaceID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Space.ID = spaceID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO space_configs(space_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(space_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, spaceID, string(payload), now, now)
	return err
}

func (r Repo) GetSpaceConfig(ctx context.Context, spaceID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM space_configs WHERE space_id=?`, spaceID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Space.ID == "" {
		cfg.Space.ID = spaceID
	}
	return &cfg, cfg.Validate()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
