package reliability

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/sentinel/internal/database"
)

// sentinelDatabaseNames is the store's six-database layout (SPEC_FULL.md
// §13): every file a nightly backup must cover.
var sentinelDatabaseNames = []string{"universe", "config", "ledger", "portfolio", "history", "cache"}

// BackupService creates local, verified copies of every store database,
// the staging step the R2 backup job uploads from.
type BackupService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewBackupService wires a BackupService against the server's already-open
// database handles, one per name in sentinelDatabaseNames.
func NewBackupService(databases map[string]*database.DB, log zerolog.Logger) *BackupService {
	return &BackupService{databases: databases, log: log.With().Str("service", "backup").Logger()}
}

// GetDatabaseNames returns the fixed six-database backup set.
func (s *BackupService) GetDatabaseNames() []string {
	return sentinelDatabaseNames
}

// BackupDatabase writes an atomic, WAL-free copy of one database to
// backupPath via SQLite's VACUUM INTO, then verifies the copy's integrity.
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("vacuum into %s: %w", backupPath, err)
	}

	if err := s.verifyBackup(backupPath); err != nil {
		_ = os.Remove(backupPath)
		return fmt.Errorf("verify backup %s: %w", backupPath, err)
	}

	return nil
}

func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
