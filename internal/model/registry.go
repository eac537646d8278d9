package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/richxcame/fraudscore/internal/features"
	"github.com/richxcame/fraudscore/pkg/logger"
)

const metadataFile = "metadata.json"

// metadata describes the artifact set: most importantly, the exact feature
// schema the models were trained against.
type metadata struct {
	Version      string   `json:"version"`
	TrainedAt    string   `json:"trained_at"`
	FeatureNames []string `json:"feature_names"`
}

// artifactEnvelope is the common header of every model artifact file.
type artifactEnvelope struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Registry holds the loaded classifiers. Build it once at startup and share
// it across all scoring calls; it is immutable after construction.
type Registry struct {
	classifiers []Classifier
	version     string
}

// NewRegistry builds a registry from pre-constructed classifiers. Intended
// for tests and embedders with their own loading.
func NewRegistry(classifiers ...Classifier) *Registry {
	return &Registry{classifiers: classifiers}
}

// LoadRegistry reads metadata.json plus every model artifact in dir.
//
// A feature-schema mismatch between the artifacts and the canonical schema
// aborts loading: a silently reordered vector would corrupt every
// prediction. Individual unreadable artifacts are skipped with a warning;
// an empty registry is valid (the ensemble falls back to rule-based
// scoring).
func LoadRegistry(dir string) (*Registry, error) {
	log := logger.Named("model")

	meta, err := loadMetadata(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}
	if err := validateSchema(meta.FeatureNames); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("model: reading artifact dir %q: %w", dir, err)
	}

	reg := &Registry{version: meta.Version}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == metadataFile || !strings.HasSuffix(name, ".json") {
			continue
		}

		path := filepath.Join(dir, name)
		c, err := loadArtifact(path)
		if err != nil {
			log.Warn("skipping unreadable model artifact",
				zap.String("artifact", name),
				zap.Error(err),
			)
			continue
		}

		reg.classifiers = append(reg.classifiers, c)
		log.Info("loaded classifier",
			zap.String("classifier", c.Name()),
			zap.String("artifact", name),
		)
	}

	if len(reg.classifiers) == 0 {
		log.Warn("no classifiers loaded, ensemble will use rule-based fallback scoring",
			zap.String("dir", dir),
		)
	}

	return reg, nil
}

// Classifiers returns the loaded classifiers.
func (r *Registry) Classifiers() []Classifier {
	return r.classifiers
}

// Version returns the artifact set version, when loaded from disk.
func (r *Registry) Version() string {
	return r.version
}

func loadMetadata(path string) (*metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: reading %s: %w", metadataFile, err)
	}
	var meta metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("model: parsing %s: %w", metadataFile, err)
	}
	return &meta, nil
}

// validateSchema compares the artifact feature schema against the canonical
// one, name by name and position by position.
func validateSchema(artifactNames []string) error {
	canonical := features.Names()
	if len(artifactNames) != len(canonical) {
		return fmt.Errorf("model: artifact schema has %d features, canonical schema has %d",
			len(artifactNames), len(canonical))
	}
	for i, name := range canonical {
		if artifactNames[i] != name {
			return fmt.Errorf("model: feature schema mismatch at position %d: artifact %q, canonical %q",
				i, artifactNames[i], name)
		}
	}
	return nil
}

func loadArtifact(path string) (Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var env artifactEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing artifact header: %w", err)
	}

	switch env.Type {
	case "logistic":
		var a logisticArtifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return newLogistic(a)
	case "tree_ensemble":
		var a treeEnsembleArtifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return newTreeEnsemble(a)
	case "gaussian_anomaly":
		var a anomalyArtifact
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		return newGaussianAnomaly(a)
	default:
		return nil, fmt.Errorf("unknown artifact type %q", env.Type)
	}
}
