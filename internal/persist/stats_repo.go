package persist

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"
)

// PoolStat is one prefab's pool counters at snapshot time.
type PoolStat struct {
	Prefab      string
	Fingerprint [32]byte
	Created     int64
	Prewarmed   int64
	Reused      int64
	Despawned   int64
	Available   int32
	UpdatedAt   time.Time
}

// StatsRepo stores pool counters. Pool contents are never persisted.
type StatsRepo struct {
	db *DB
}

func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// Save upserts every row in one transaction, replacing the previous
// snapshot for each prefab.
func (r *StatsRepo) Save(ctx context.Context, stats []PoolStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pool stats begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range stats {
		if _, err := tx.Exec(ctx,
			`INSERT INTO pool_stats (prefab, fingerprint, created, prewarmed, reused, despawned, available, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (prefab) DO UPDATE SET
			   fingerprint = EXCLUDED.fingerprint,
			   created     = EXCLUDED.created,
			   prewarmed   = EXCLUDED.prewarmed,
			   reused      = EXCLUDED.reused,
			   despawned   = EXCLUDED.despawned,
			   available   = EXCLUDED.available,
			   updated_at  = EXCLUDED.updated_at`,
			s.Prefab, hex.EncodeToString(s.Fingerprint[:]),
			s.Created, s.Prewarmed, s.Reused, s.Despawned, s.Available, updatedAt(s),
		); err != nil {
			return fmt.Errorf("pool stats upsert %s: %w", s.Prefab, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadAll returns the stored snapshot ordered by prefab name.
func (r *StatsRepo) LoadAll(ctx context.Context) ([]PoolStat, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT prefab, fingerprint, created, prewarmed, reused, despawned, available, updated_at
		 FROM pool_stats ORDER BY prefab`)
	if err != nil {
		return nil, fmt.Errorf("pool stats query: %w", err)
	}
	defer rows.Close()

	var out []PoolStat
	for rows.Next() {
		var (
			s  PoolStat
			fp string
		)
		if err := rows.Scan(&s.Prefab, &fp, &s.Created, &s.Prewarmed, &s.Reused,
			&s.Despawned, &s.Available, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pool stats scan: %w", err)
		}
		raw, err := hex.DecodeString(fp)
		if err != nil || len(raw) != len(s.Fingerprint) {
			return nil, fmt.Errorf("pool stats %s: bad fingerprint %q", s.Prefab, fp)
		}
		copy(s.Fingerprint[:], raw)
		out = append(out, s)
	}
	return out, rows.Err()
}

// updatedAt is the snapshot time, or now for rows built without one.
func updatedAt(s PoolStat) time.Time {
	if s.UpdatedAt.IsZero() {
		return time.Now()
	}
	return s.UpdatedAt
}
