// Package registry persists trained models as versioned filesystem
// artifacts. Each version directory holds the gob+gzip model blob and a
// JSON metadata sidecar; a "latest" pointer file is renamed into place
// only after the version directory is complete, so concurrent readers
// never resolve a half-written model.
package registry

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/models"
	"github.com/resto-data/covers.report/internal/timeutil"
)

const (
	modelFile    = "model.gob.gz"
	metadataFile = "metadata.json"
	latestFile   = "latest"
)

// Metadata is the JSON sidecar written next to every model blob.
type Metadata struct {
	ModelType    string         `json:"model_type"`
	RestaurantID int64          `json:"restaurant_id"`
	Version      string         `json:"version"`
	TrainedAt    time.Time      `json:"trained_at"`
	Metrics      models.Metrics `json:"metrics"`
}

// Info summarizes a (task, restaurant) slot: the latest metadata plus all
// stored versions.
type Info struct {
	Latest       *Metadata `json:"latest"`
	Versions     []string  `json:"versions"`
	VersionCount int       `json:"version_count"`
}

// ModelNotFoundError reports that no model is stored for the slot.
type ModelNotFoundError struct {
	Task         string
	RestaurantID int64
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("no %s model found for restaurant %d", e.Task, e.RestaurantID)
}

// Registry stores models under {base}/{task}/restaurant_{id}/{version}/.
type Registry struct {
	base  string
	clock timeutil.Clock
	log   zerolog.Logger
}

func New(base string, clock timeutil.Clock, log zerolog.Logger) *Registry {
	return &Registry{base: base, clock: clock, log: log}
}

func (r *Registry) slotDir(task string, restaurantID int64) string {
	return filepath.Join(r.base, task, fmt.Sprintf("restaurant_%d", restaurantID))
}

// Save writes a new version of the model and repoints latest at it. It
// returns the version name. Versions are timestamp-derived; saves within
// the same second get a numeric suffix.
func (r *Registry) Save(task string, restaurantID int64, model models.Model, metrics models.Metrics) (string, error) {
	slot := r.slotDir(task, restaurantID)
	if err := os.MkdirAll(slot, 0o755); err != nil {
		return "", fmt.Errorf("failed to create registry slot: %w", err)
	}

	now := r.clock.Now().UTC()
	version, err := r.claimVersion(slot, now)
	if err != nil {
		return "", err
	}

	// Stage the version in a temp dir and rename it into place so listing
	// never observes a partial version.
	staging := filepath.Join(slot, "."+version+".tmp")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := writeModelBlob(filepath.Join(staging, modelFile), model); err != nil {
		return "", err
	}

	meta := Metadata{
		ModelType:    task,
		RestaurantID: restaurantID,
		Version:      version,
		TrainedAt:    now,
		Metrics:      metrics,
	}
	if err := writeJSON(filepath.Join(staging, metadataFile), meta); err != nil {
		return "", err
	}

	versionDir := filepath.Join(slot, version)
	if err := os.Rename(staging, versionDir); err != nil {
		return "", fmt.Errorf("failed to commit version dir: %w", err)
	}

	if err := r.pointLatest(slot, version); err != nil {
		return "", err
	}

	r.log.Info().
		Str("task", task).
		Int64("restaurant_id", restaurantID).
		Str("version", version).
		Msg("saved model version")
	return version, nil
}

// claimVersion picks the next free version name for the timestamp.
func (r *Registry) claimVersion(slot string, now time.Time) (string, error) {
	base := now.Format("20060102T150405Z")
	version := base
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(slot, version)); os.IsNotExist(err) {
			return version, nil
		} else if err != nil {
			return "", fmt.Errorf("failed to probe version dir: %w", err)
		}
		if i > 99 {
			return "", fmt.Errorf("too many versions claimed at %s", base)
		}
		version = fmt.Sprintf("%s-%02d", base, i)
	}
}

// pointLatest atomically replaces the latest pointer.
func (r *Registry) pointLatest(slot, version string) error {
	tmp := filepath.Join(slot, fmt.Sprintf(".latest.%s.tmp", version))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create latest pointer: %w", err)
	}
	if _, err := f.WriteString(version + "\n"); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write latest pointer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync latest pointer: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close latest pointer: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(slot, latestFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit latest pointer: %w", err)
	}
	return nil
}

// ResolveLatest returns the version the latest pointer names.
func (r *Registry) ResolveLatest(task string, restaurantID int64) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.slotDir(task, restaurantID), latestFile))
	if os.IsNotExist(err) {
		return "", &ModelNotFoundError{Task: task, RestaurantID: restaurantID}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read latest pointer: %w", err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", &ModelNotFoundError{Task: task, RestaurantID: restaurantID}
	}
	return version, nil
}

// ListVersions returns stored versions, newest first.
func (r *Registry) ListVersions(task string, restaurantID int64) ([]string, error) {
	entries, err := os.ReadDir(r.slotDir(task, restaurantID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			versions = append(versions, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(versions)))
	return versions, nil
}

// LoadMetadata reads the metadata sidecar of a version.
func (r *Registry) LoadMetadata(task string, restaurantID int64, version string) (*Metadata, error) {
	path := filepath.Join(r.slotDir(task, restaurantID), version, metadataFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &ModelNotFoundError{Task: task, RestaurantID: restaurantID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}

// LoadModel decodes a stored version into its concrete model type.
func (r *Registry) LoadModel(task string, restaurantID int64, version string) (models.Model, *Metadata, error) {
	meta, err := r.LoadMetadata(task, restaurantID, version)
	if err != nil {
		return nil, nil, err
	}

	path := filepath.Join(r.slotDir(task, restaurantID), version, modelFile)
	model, err := readModelBlob(path, task, r.log)
	if err != nil {
		return nil, nil, err
	}
	return model, meta, nil
}

// LoadLatest resolves the latest pointer and loads that version.
func (r *Registry) LoadLatest(task string, restaurantID int64) (models.Model, *Metadata, error) {
	version, err := r.ResolveLatest(task, restaurantID)
	if err != nil {
		return nil, nil, err
	}
	return r.LoadModel(task, restaurantID, version)
}

// ModelInfo returns latest metadata plus the full version list for the
// slot.
func (r *Registry) ModelInfo(task string, restaurantID int64) (*Info, error) {
	version, err := r.ResolveLatest(task, restaurantID)
	if err != nil {
		return nil, err
	}
	meta, err := r.LoadMetadata(task, restaurantID, version)
	if err != nil {
		return nil, err
	}
	versions, err := r.ListVersions(task, restaurantID)
	if err != nil {
		return nil, err
	}
	return &Info{Latest: meta, Versions: versions, VersionCount: len(versions)}, nil
}

func writeModelBlob(path string, model models.Model) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create model blob: %w", err)
	}
	gz := gzip.NewWriter(f)
	if err := gob.NewEncoder(gz).Encode(model); err != nil {
		gz.Close()
		f.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush model blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync model blob: %w", err)
	}
	return f.Close()
}

func readModelBlob(path, task string, log zerolog.Logger) (models.Model, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("model blob missing at %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open model blob: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open model blob: %w", err)
	}
	defer gz.Close()
	dec := gob.NewDecoder(gz)

	switch task {
	case models.TaskDemand:
		m := &models.Demand{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("failed to decode demand model: %w", err)
		}
		m.SetLogger(log)
		return m, nil
	case models.TaskKitchen:
		m := &models.Kitchen{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("failed to decode kitchen model: %w", err)
		}
		return m, nil
	case models.TaskChurn:
		m := &models.Churn{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("failed to decode churn model: %w", err)
		}
		return m, nil
	case models.TaskLTV:
		m := &models.LTV{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("failed to decode ltv model: %w", err)
		}
		return m, nil
	case models.TaskInventory:
		m := &models.Inventory{}
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("failed to decode inventory model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model task %q", task)
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync metadata: %w", err)
	}
	return f.Close()
}
