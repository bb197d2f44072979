// Package config loads YAML-driven pipeline configuration, the way the
// teacher's taxonomy and stoplist files are loaded.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/relinker/pkg/relinker/internalerr"
	"github.com/cognicore/relinker/pkg/relinker/similarity"
)

// FunctionSpec names one similarity function: which field it reads and
// which kernel computes it.
type FunctionSpec struct {
	Field  string `yaml:"field"`
	Kernel string `yaml:"kernel"`
}

// Config is the on-disk shape of a pipeline configuration file.
type Config struct {
	BlockingFields      []string       `yaml:"blocking_fields"`
	SimilarityFunctions []FunctionSpec `yaml:"similarity_functions"`
	InitialM            []float64      `yaml:"initial_m"`
	InitialU            []float64      `yaml:"initial_u"`
	BatchSize           int            `yaml:"batch_size"`
	MatchThreshold      float64        `yaml:"match_threshold"`
	EMMaxIter           int            `yaml:"em_max_iter"`
	EMTolerance         float64        `yaml:"em_tolerance"`
	FieldWeights        []float64      `yaml:"field_weights"`
}

// Load reads a pipeline configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %v", internalerr.ErrConfigurationInvalid, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", internalerr.ErrConfigurationInvalid, err)
	}

	return &cfg, nil
}

// KernelByName resolves a kernel name from a config file into the
// matching similarity.Kernel function. Unknown names are a
// configuration error, not a panic.
func KernelByName(name string) (similarity.Kernel, error) {
	switch name {
	case "levenshtein":
		return similarity.Levenshtein, nil
	case "jaro":
		return similarity.Jaro, nil
	case "cosine":
		return similarity.Cosine, nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel %q", internalerr.ErrConfigurationInvalid, name)
	}
}

// BuildFunctions resolves a Config's SimilarityFunctions into the
// similarity.Function list a Scorer and Estimator operate on, wiring
// each field's kernel against the given idf.
func (c *Config) BuildFunctions(idf similarity.IDF) ([]similarity.Function, error) {
	out := make([]similarity.Function, 0, len(c.SimilarityFunctions))
	for _, spec := range c.SimilarityFunctions {
		kernel, err := KernelByName(spec.Kernel)
		if err != nil {
			return nil, err
		}
		out = append(out, similarity.OnField(spec.Field, kernel, idf))
	}
	return out, nil
}
