// Package collection manages the on-disk layout of indexed collections: one
// subdirectory per collection under the storage base path, identified by the
// presence of a meta.json artifact.
package collection

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/unimate/backend/internal/storage/models"
	"github.com/unimate/backend/pkg/logger"
	"github.com/unimate/backend/pkg/utils"
)

// MetaFile is the metadata artifact every valid collection carries.
const MetaFile = "meta.json"

// Info identifies one collection on storage.
type Info struct {
	ID   string
	Path string
}

// Registry enumerates collections under a base path.
type Registry struct {
	basePath string
}

func NewRegistry(basePath string) *Registry {
	return &Registry{basePath: basePath}
}

func (r *Registry) BasePath() string {
	return r.basePath
}

// List returns every subdirectory holding a meta.json, in lexicographic
// order. Directories without the artifact are skipped silently; a missing
// base path yields an empty list.
func (r *Registry) List() []Info {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		logger.Debug("Collection base path not readable", zap.String("path", r.basePath), zap.Error(err))
		return nil
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.basePath, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, MetaFile)); err != nil {
			logger.Debug("Skipping directory without metadata", zap.String("dir", dir))
			continue
		}
		infos = append(infos, Info{ID: entry.Name(), Path: dir})
	}

	return infos
}

// Dir returns the directory a collection id maps to, creating it if needed.
func (r *Registry) Dir(collectionID string) (string, error) {
	dir := filepath.Join(r.basePath, collectionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create collection dir: %w", err)
	}
	return dir, nil
}

// Path maps a collection id to its directory without touching the filesystem.
func (r *Registry) Path(collectionID string) string {
	return filepath.Join(r.basePath, collectionID)
}

// Exists reports whether a collection already has its metadata artifact.
func (r *Registry) Exists(collectionID string) bool {
	_, err := os.Stat(filepath.Join(r.basePath, collectionID, MetaFile))
	return err == nil
}

// IDFromFiles derives the collection id for a set of uploads. The id is a
// pure function of the (name, size) pairs and does not depend on their order.
func IDFromFiles(names []string, sizes []int64) string {
	return utils.FingerprintFiles(names, sizes)
}

// ReadMeta loads a collection's meta.json.
func ReadMeta(dir string) (*models.CollectionMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta models.CollectionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &meta, nil
}

// WriteMeta persists meta.json. Ingestion writes it last, so a directory
// with meta.json present always has its dense artifact already in place.
func WriteMeta(dir string, meta *models.CollectionMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, MetaFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}
