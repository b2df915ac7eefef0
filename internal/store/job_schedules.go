package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/domain"
)

// JobScheduleRepository wraps cache.db's job_schedules table, the
// authoritative state for the Job Runtime's dispatch loop (spec.md §4.8).
type JobScheduleRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewJobScheduleRepository creates a repository over an open cache.db connection.
func NewJobScheduleRepository(db *sql.DB, log zerolog.Logger) *JobScheduleRepository {
	return &JobScheduleRepository{db: db, log: log.With().Str("repository", "job_schedules").Logger()}
}

func scanJobSchedule(row interface {
	Scan(dest ...any) error
}) (domain.JobSchedule, error) {
	var j domain.JobSchedule
	var intervalMarketOpen sql.NullInt64
	var lastRun int64
	err := row.Scan(&j.JobType, &j.IntervalMinutes, &intervalMarketOpen, &j.MarketTiming,
		&j.Category, &j.Description, &lastRun, &j.ConsecutiveFailures)
	if err != nil {
		return domain.JobSchedule{}, err
	}
	if intervalMarketOpen.Valid {
		v := int(intervalMarketOpen.Int64)
		j.IntervalMarketOpenMinutes = &v
	}
	if lastRun > 0 {
		j.LastRun = time.Unix(lastRun, 0).UTC()
	}
	return j, nil
}

const jobScheduleColumns = `job_type, interval_minutes, interval_market_open_minutes, market_timing, category, description, last_run, consecutive_failures`

// Get returns one schedule by job_type (which may be "job_type:param" for a
// parameterized instance), or (zero, sql.ErrNoRows).
func (r *JobScheduleRepository) Get(jobType string) (domain.JobSchedule, error) {
	row := r.db.QueryRow(`SELECT `+jobScheduleColumns+` FROM job_schedules WHERE job_type = ?`, jobType)
	j, err := scanJobSchedule(row)
	if err != nil {
		return domain.JobSchedule{}, fmt.Errorf("get job schedule %s: %w", jobType, err)
	}
	return j, nil
}

// ListAll returns every registered schedule, used by the dispatch loop's
// per-tick due-check sweep.
func (r *JobScheduleRepository) ListAll() ([]domain.JobSchedule, error) {
	rows, err := r.db.Query(`SELECT ` + jobScheduleColumns + ` FROM job_schedules`)
	if err != nil {
		return nil, fmt.Errorf("list job schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.JobSchedule
	for rows.Next() {
		j, err := scanJobSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job schedule: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Register creates a schedule if absent; it never overwrites an existing
// row, so an operator's manual interval edit survives a restart.
func (r *JobScheduleRepository) Register(j domain.JobSchedule) error {
	var intervalMarketOpen sql.NullInt64
	if j.IntervalMarketOpenMinutes != nil {
		intervalMarketOpen = sql.NullInt64{Int64: int64(*j.IntervalMarketOpenMinutes), Valid: true}
	}
	now := time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO job_schedules (job_type, interval_minutes, interval_market_open_minutes, market_timing, category, description, last_run, consecutive_failures, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
		ON CONFLICT(job_type) DO NOTHING
	`, j.JobType, j.IntervalMinutes, intervalMarketOpen, int(j.MarketTiming), j.Category, j.Description, now, now)
	if err != nil {
		return fmt.Errorf("register job schedule %s: %w", j.JobType, err)
	}
	return nil
}

// MarkSucceeded records a successful run: updates last_run and resets the
// failure streak to zero.
func (r *JobScheduleRepository) MarkSucceeded(jobType string, ranAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE job_schedules SET last_run = ?, consecutive_failures = 0, updated_at = ? WHERE job_type = ?
	`, ranAt.Unix(), time.Now().Unix(), jobType)
	if err != nil {
		return fmt.Errorf("mark job succeeded %s: %w", jobType, err)
	}
	return nil
}

// MarkFailed records a failed run: updates last_run and increments the
// failure streak (capped by the caller's backoff policy, not here).
func (r *JobScheduleRepository) MarkFailed(jobType string, ranAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE job_schedules SET last_run = ?, consecutive_failures = consecutive_failures + 1, updated_at = ? WHERE job_type = ?
	`, ranAt.Unix(), time.Now().Unix(), jobType)
	if err != nil {
		return fmt.Errorf("mark job failed %s: %w", jobType, err)
	}
	return nil
}

// UpdateInterval lets an operator change a schedule's cadence at runtime.
func (r *JobScheduleRepository) UpdateInterval(jobType string, intervalMinutes int, intervalMarketOpenMinutes *int) error {
	var marketOpen sql.NullInt64
	if intervalMarketOpenMinutes != nil {
		marketOpen = sql.NullInt64{Int64: int64(*intervalMarketOpenMinutes), Valid: true}
	}
	_, err := r.db.Exec(`
		UPDATE job_schedules SET interval_minutes = ?, interval_market_open_minutes = ?, updated_at = ? WHERE job_type = ?
	`, intervalMinutes, marketOpen, time.Now().Unix(), jobType)
	if err != nil {
		return fmt.Errorf("update job interval %s: %w", jobType, err)
	}
	return nil
}

// Delete removes a parameterized job instance, used when a one-off
// ("job_type:param") schedule is no longer needed.
func (r *JobScheduleRepository) Delete(jobType string) error {
	_, err := r.db.Exec(`DELETE FROM job_schedules WHERE job_type = ?`, jobType)
	if err != nil {
		return fmt.Errorf("delete job schedule %s: %w", jobType, err)
	}
	return nil
}
