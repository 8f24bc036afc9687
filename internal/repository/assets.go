package repository

import (
	"context"

	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
)

const getAssetByName = `
SELECT id, name, type, category, blockchain
FROM assets
WHERE blockchain = $1 AND name = $2`

func (q *Queries) GetAssetByName(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error) {
	var a models.Asset
	err := q.db.QueryRow(ctx, getAssetByName, blockchain, name).Scan(&a.ID, &a.Name, &a.Type, &a.Category, &a.Blockchain)
	return a, err
}

const upsertAsset = `
INSERT INTO assets (name, type, category, blockchain)
VALUES ($1, $2, $3, $4)
ON CONFLICT (blockchain, name) DO UPDATE SET type = EXCLUDED.type, category = EXCLUDED.category
RETURNING id`

func (q *Queries) UpsertAsset(ctx context.Context, a *models.Asset) error {
	return q.db.QueryRow(ctx, upsertAsset, a.Name, a.Type, a.Category, a.Blockchain).Scan(&a.ID)
}
