package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// RestoreService implements Sentinel's two-phase restore: StageRestoreFromR2
// downloads and validates a backup without touching production databases,
// then ExecuteStagedRestore (called on the next boot) applies it. Splitting
// the phases means a bad backup never corrupts a running database.
type RestoreService struct {
	r2Client *R2Client
	dataDir  string
	log      zerolog.Logger
}

// RestoreFlag marks a staged restore pending application on the next boot.
type RestoreFlag struct {
	BackupFilename string    `json:"backup_filename"`
	StagedAt       time.Time `json:"staged_at"`
	Databases      []string  `json:"databases"`
}

// NewRestoreService wires a RestoreService against an already-configured
// R2Client and the data directory the six store databases live in.
func NewRestoreService(r2Client *R2Client, dataDir string, log zerolog.Logger) *RestoreService {
	return &RestoreService{
		r2Client: r2Client,
		dataDir:  dataDir,
		log:      log.With().Str("service", "restore").Logger(),
	}
}

// CheckPendingRestore reports whether a restore was staged on a previous run
// and is waiting to be applied. cmd/server calls this before opening any
// database handle.
func (s *RestoreService) CheckPendingRestore() (bool, error) {
	flagPath := filepath.Join(s.dataDir, ".pending-restore")
	_, err := os.Stat(flagPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check pending restore flag: %w", err)
	}
	return true, nil
}

// StageRestoreFromR2 downloads, extracts, and validates a named backup
// archive without touching production databases (phase 1). It writes a
// pending-restore flag so ExecuteStagedRestore can apply it on next boot.
func (s *RestoreService) StageRestoreFromR2(ctx context.Context, filename string) error {
	s.log.Info().Str("filename", filename).Msg("staging restore from R2")
	start := time.Now()

	stagingDir := filepath.Join(s.dataDir, "restore-staging")
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("clean staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	archivePath := filepath.Join(stagingDir, filename)
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	writerAt := &FileWriterAt{File: archiveFile}
	bytesDownloaded, err := s.r2Client.Download(ctx, filename, writerAt)
	archiveFile.Close()
	if err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("download from r2: %w", err)
	}
	s.log.Info().Str("filename", filename).Int64("bytes", bytesDownloaded).Msg("downloaded backup")

	if err := s.extractArchive(archivePath, stagingDir); err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("extract archive: %w", err)
	}

	if err := s.validateStagedBackup(stagingDir); err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("validate staged backup: %w", err)
	}

	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	metadata, err := s.readMetadata(metadataPath)
	if err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("read metadata: %w", err)
	}

	dbNames := make([]string, len(metadata.Databases))
	for i, db := range metadata.Databases {
		dbNames[i] = db.Name
	}

	flag := RestoreFlag{
		BackupFilename: filename,
		StagedAt:       time.Now().UTC(),
		Databases:      dbNames,
	}
	flagPath := filepath.Join(s.dataDir, ".pending-restore")
	if err := s.writeRestoreFlag(flagPath, flag); err != nil {
		os.RemoveAll(stagingDir)
		return fmt.Errorf("write restore flag: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("filename", filename).
		Int("databases", len(dbNames)).
		Msg("restore staged — restart service to apply")
	return nil
}

// ExecuteStagedRestore applies a previously staged restore (phase 2). It is
// called once, on boot, before any database is opened for normal use. It
// copies the current databases aside as a safety backup first.
func (s *RestoreService) ExecuteStagedRestore() error {
	s.log.Warn().Msg("executing staged restore")
	start := time.Now()

	flagPath := filepath.Join(s.dataDir, ".pending-restore")
	flag, err := s.readRestoreFlag(flagPath)
	if err != nil {
		return fmt.Errorf("read restore flag: %w", err)
	}

	stagingDir := filepath.Join(s.dataDir, "restore-staging")
	if _, err := os.Stat(stagingDir); err != nil {
		return fmt.Errorf("staging directory not found: %w", err)
	}
	if err := s.validateStagedBackup(stagingDir); err != nil {
		return fmt.Errorf("validate staged backup: %w", err)
	}

	safetyDir := filepath.Join(s.dataDir, fmt.Sprintf("pre-restore-backup-%s", time.Now().Format("20060102-150405")))
	if err := os.MkdirAll(safetyDir, 0755); err != nil {
		return fmt.Errorf("create safety backup directory: %w", err)
	}

	for _, dbName := range flag.Databases {
		currentPath := filepath.Join(s.dataDir, dbName+".db")
		if _, err := os.Stat(currentPath); err == nil {
			safetyPath := filepath.Join(safetyDir, dbName+".db")
			if err := s.copyFile(currentPath, safetyPath); err != nil {
				s.log.Error().Err(err).Str("database", dbName).Msg("failed to create safety backup")
			}
		}
	}

	for _, dbName := range flag.Databases {
		stagedPath := filepath.Join(stagingDir, dbName+".db")
		productionPath := filepath.Join(s.dataDir, dbName+".db")

		os.Remove(productionPath)
		os.Remove(productionPath + "-wal")
		os.Remove(productionPath + "-shm")

		if err := s.copyFile(stagedPath, productionPath); err != nil {
			return fmt.Errorf("copy %s to production: %w", dbName, err)
		}
		s.log.Info().Str("database", dbName).Msg("database restored")
	}

	if err := os.Remove(flagPath); err != nil {
		s.log.Error().Err(err).Msg("failed to delete restore flag")
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		s.log.Error().Err(err).Msg("failed to delete staging directory")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Int("databases", len(flag.Databases)).
		Str("safety_backup", safetyDir).
		Msg("restore completed")
	return nil
}

// CancelStagedRestore discards a pending restore without applying it.
func (s *RestoreService) CancelStagedRestore() error {
	flagPath := filepath.Join(s.dataDir, ".pending-restore")
	if err := os.Remove(flagPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete restore flag: %w", err)
	}
	stagingDir := filepath.Join(s.dataDir, "restore-staging")
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("delete staging directory: %w", err)
	}
	s.log.Info().Msg("staged restore canceled")
	return nil
}

func (s *RestoreService) validateStagedBackup(stagingDir string) error {
	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	metadata, err := s.readMetadata(metadataPath)
	if err != nil {
		return fmt.Errorf("metadata validation: %w", err)
	}

	for _, dbInfo := range metadata.Databases {
		dbPath := filepath.Join(stagingDir, dbInfo.Filename)

		info, err := os.Stat(dbPath)
		if err != nil {
			return fmt.Errorf("database %s not found: %w", dbInfo.Name, err)
		}
		if info.Size() != dbInfo.SizeBytes {
			return fmt.Errorf("database %s size mismatch: expected %d, got %d",
				dbInfo.Name, dbInfo.SizeBytes, info.Size())
		}
		if err := s.checkIntegrity(dbPath); err != nil {
			return fmt.Errorf("database %s integrity check failed: %w", dbInfo.Name, err)
		}
	}
	return nil
}

func (s *RestoreService) checkIntegrity(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func (s *RestoreService) extractArchive(archivePath, destDir string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		targetPath := filepath.Join(destDir, header.Name)
		if !filepath.HasPrefix(targetPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid file path in archive: %s", header.Name)
		}

		if header.Typeflag == tar.TypeReg {
			outFile, err := os.Create(targetPath)
			if err != nil {
				return fmt.Errorf("create file %s: %w", header.Name, err)
			}
			if _, err := io.Copy(outFile, tarReader); err != nil {
				outFile.Close()
				return fmt.Errorf("write file %s: %w", header.Name, err)
			}
			outFile.Close()
		}
	}
	return nil
}

func (s *RestoreService) copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

func (s *RestoreService) readMetadata(path string) (*BackupMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var metadata BackupMetadata
	if err := json.NewDecoder(file).Decode(&metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (s *RestoreService) readRestoreFlag(path string) (*RestoreFlag, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var flag RestoreFlag
	if err := json.NewDecoder(file).Decode(&flag); err != nil {
		return nil, err
	}
	return &flag, nil
}

func (s *RestoreService) writeRestoreFlag(path string, flag RestoreFlag) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(flag)
}

// FileWriterAt adapts an *os.File to io.WriterAt for the downloader, which
// only ever writes sequentially for a single-archive restore download.
type FileWriterAt struct {
	File   *os.File
	Offset int64
}

func (f *FileWriterAt) WriteAt(p []byte, off int64) (n int, err error) {
	if off != f.Offset {
		return 0, fmt.Errorf("FileWriterAt only supports sequential writes")
	}
	n, err = f.File.Write(p)
	f.Offset += int64(n)
	return n, err
}
