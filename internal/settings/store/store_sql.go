package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"relay/internal/settings/models"
	"relay/pkg/platform/sentinel"
	"relay/pkg/platform/tx"
)

type settingRow struct {
	bun.BaseModel `bun:"table:settings,alias:s"`

	Key       string    `bun:"setting_key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

type SQLStore struct {
	db *bun.DB
}

func NewSQL(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Seed inserts the defaults with INSERT ... ON CONFLICT DO NOTHING inside
// one transaction and returns the number of rows inserted.
func (s *SQLStore) Seed(ctx context.Context, defaults []models.Setting) (int, error) {
	inserted := 0
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		for _, d := range defaults {
			res, err := tx.DB(ctx, s.db).NewInsert().
				Model(toRow(d)).
				On("CONFLICT (setting_key) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed setting %s: %w", d.Key, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("seed setting %s rows affected: %w", d.Key, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *SQLStore) Get(ctx context.Context, key models.Key) (*models.Setting, error) {
	row := new(settingRow)
	err := tx.DB(ctx, s.db).NewSelect().Model(row).Where("s.setting_key = ?", string(key)).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("setting %s: %w", key, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select setting: %w", err)
	}
	return row.toModel(), nil
}

// Set upserts one value.
func (s *SQLStore) Set(ctx context.Context, setting models.Setting) error {
	_, err := tx.DB(ctx, s.db).NewInsert().
		Model(toRow(setting)).
		On("CONFLICT (setting_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]models.Setting, error) {
	var rows []settingRow
	err := tx.DB(ctx, s.db).NewSelect().Model(&rows).OrderExpr("s.setting_key ASC").Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	out := make([]models.Setting, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r.toModel())
	}
	return out, nil
}

func toRow(s models.Setting) *settingRow {
	return &settingRow{Key: string(s.Key), Value: s.Value, UpdatedAt: s.UpdatedAt.UTC()}
}

func (r *settingRow) toModel() *models.Setting {
	return &models.Setting{Key: models.Key(r.Key), Value: r.Value, UpdatedAt: r.UpdatedAt}
}
