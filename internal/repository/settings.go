package repository

import "context"

const getSetting = `SELECT value FROM settings WHERE key = $1`

func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&value)
	return value, err
}

const upsertSetting = `
INSERT INTO settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

func (q *Queries) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx, upsertSetting, key, value)
	return err
}
