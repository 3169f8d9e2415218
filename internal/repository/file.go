package repository

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/discoverdb/internal/domain"
	"gopkg.in/yaml.v3"
)

// FileRepository implements domain.SnapshotRepository using YAML files
type FileRepository struct {
	log zerolog.Logger
}

// NewFileRepository creates a new file-based repository
func NewFileRepository(log zerolog.Logger) *FileRepository {
	return &FileRepository{
		log: log.With().Str("module", "repository").Logger(),
	}
}

var _ domain.SnapshotRepository = (*FileRepository)(nil)

// Get reads a snapshot file
func (r *FileRepository) Get(ctx context.Context, path string) (*domain.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(domain.ErrNotFound, "file does not exist: %s", path)
		}
		return nil, errors.Wrapf(err, "failed to stat file %s", path)
	}
	if info.IsDir() {
		return nil, errors.Errorf("path is a directory, not a file: %s", path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %s", path)
	}

	snapshot := &domain.Snapshot{}
	if err := yaml.Unmarshal(b, snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal yaml from %s", path)
	}

	return snapshot, nil
}

// Store writes a snapshot file, creating its directory if needed
func (r *FileRepository) Store(ctx context.Context, path string, snapshot *domain.Snapshot) error {
	b, err := yaml.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to marshal yaml")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.Wrapf(err, "failed to write file %s", path)
	}

	count := 0
	for _, c := range snapshot.Catalogs {
		count += len(c.Items)
	}
	r.log.Debug().Str("path", path).Int("count", count).Msg("stored snapshot")
	return nil
}
