package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// JobHistoryRepository wraps cache.db's job_history table: an append-only
// execution log used for observability and backoff diagnosis.
type JobHistoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewJobHistoryRepository creates a repository over an open cache.db connection.
func NewJobHistoryRepository(db *sql.DB, log zerolog.Logger) *JobHistoryRepository {
	return &JobHistoryRepository{db: db, log: log.With().Str("repository", "job_history").Logger()}
}

// Insert appends one execution record.
func (r *JobHistoryRepository) Insert(e domain.JobHistoryEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO job_history (job_id, job_type, status, error, duration_ms, executed_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.JobID, e.JobType, string(e.Status), e.Error, e.DurationMS, e.ExecutedAt.Unix(), e.RetryCount)
	if err != nil {
		return fmt.Errorf("insert job history %s: %w", e.JobID, err)
	}
	return nil
}

// RecentForType returns the most recent n execution records for a job type,
// descending by time.
func (r *JobHistoryRepository) RecentForType(jobType string, n int) ([]domain.JobHistoryEntry, error) {
	rows, err := r.db.Query(`
		SELECT job_id, job_type, status, error, duration_ms, executed_at, retry_count
		FROM job_history WHERE job_type = ? ORDER BY executed_at DESC LIMIT ?
	`, jobType, n)
	if err != nil {
		return nil, fmt.Errorf("recent job history %s: %w", jobType, err)
	}
	defer rows.Close()

	var out []domain.JobHistoryEntry
	for rows.Next() {
		var e domain.JobHistoryEntry
		var executedAt int64
		if err := rows.Scan(&e.JobID, &e.JobType, &e.Status, &e.Error, &e.DurationMS, &executedAt, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("scan job history: %w", err)
		}
		e.ExecutedAt = time.Unix(executedAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneBefore deletes history rows older than cutoff, used by the retention
// job so cache.db doesn't grow unbounded.
func (r *JobHistoryRepository) PruneBefore(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM job_history WHERE executed_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune job history before %s: %w", cutoff, err)
	}
	return res.RowsAffected()
}

// RecommendationCacheRepository wraps cache.db's recommendation_cache
// table: a short-TTL cache of Planner output so repeated reads of the
// dashboard don't re-run the full pipeline.
type RecommendationCacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRecommendationCacheRepository creates a repository over an open cache.db connection.
func NewRecommendationCacheRepository(db *sql.DB, log zerolog.Logger) *RecommendationCacheRepository {
	return &RecommendationCacheRepository{db: db, log: log.With().Str("repository", "recommendation_cache").Logger()}
}

// Get returns the cached document for a key if present and not expired.
// A miss (absent or expired) returns (nil, false, nil).
func (r *RecommendationCacheRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var document string
	var expiresAt int64
	err := r.db.QueryRowContext(ctx, `SELECT document, expires_at FROM recommendation_cache WHERE cache_key = ?`, key).
		Scan(&document, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get recommendation cache %s: %w", key, err)
	}
	if expiresAt <= time.Now().Unix() {
		return nil, false, nil
	}
	return []byte(document), true, nil
}

// Set writes or replaces a cache entry with a relative ttl.
func (r *RecommendationCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).Unix()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recommendation_cache (cache_key, document, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET document = excluded.document, expires_at = excluded.expires_at
	`, key, string(value), expiresAt)
	if err != nil {
		return fmt.Errorf("set recommendation cache %s: %w", key, err)
	}
	return nil
}

// PruneExpired deletes every entry whose expiry has passed.
func (r *RecommendationCacheRepository) PruneExpired(now time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM recommendation_cache WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune recommendation cache: %w", err)
	}
	return res.RowsAffected()
}

// CacheStats summarizes the recommendation_cache table for the cache-stats
// HTTP endpoint (spec.md §6).
type CacheStats struct {
	Entries     int64
	ExpiredNow  int64
	OldestEntry *time.Time
}

// Stats reports the current size and staleness of the recommendation cache.
func (r *RecommendationCacheRepository) Stats(now time.Time) (CacheStats, error) {
	var stats CacheStats
	err := r.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) FROM recommendation_cache`, now.Unix()).
		Scan(&stats.Entries, &stats.ExpiredNow)
	if err != nil {
		return CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	var oldest sql.NullInt64
	if err := r.db.QueryRow(`SELECT MIN(expires_at) FROM recommendation_cache`).Scan(&oldest); err != nil {
		return CacheStats{}, fmt.Errorf("cache stats oldest entry: %w", err)
	}
	if oldest.Valid {
		t := time.Unix(oldest.Int64, 0).UTC()
		stats.OldestEntry = &t
	}
	return stats, nil
}

// Clear deletes every entry, regardless of expiry, for the cache-clear HTTP
// endpoint (spec.md §6).
func (r *RecommendationCacheRepository) Clear() (int64, error) {
	res, err := r.db.Exec(`DELETE FROM recommendation_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear recommendation cache: %w", err)
	}
	return res.RowsAffected()
}
