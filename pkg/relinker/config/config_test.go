package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadParsesAllFields(t *testing.T) {
	path := writeTempConfig(t, `
blocking_fields: [city, zip]
similarity_functions:
  - field: name
    kernel: jaro
  - field: address
    kernel: levenshtein
initial_m: [0.9, 0.9]
initial_u: [0.1, 0.1]
batch_size: 500
match_threshold: 2.0
em_max_iter: 20
em_tolerance: 0.0001
field_weights: [1.0, 1.0]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.BlockingFields) != 2 || cfg.BlockingFields[0] != "city" {
		t.Errorf("BlockingFields = %v", cfg.BlockingFields)
	}
	if len(cfg.SimilarityFunctions) != 2 || cfg.SimilarityFunctions[0].Kernel != "jaro" {
		t.Errorf("SimilarityFunctions = %v", cfg.SimilarityFunctions)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.BatchSize)
	}
	if cfg.MatchThreshold != 2.0 {
		t.Errorf("MatchThreshold = %v, want 2.0", cfg.MatchThreshold)
	}
}

func TestLoadMissingFileIsConfigurationError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadMalformedYAMLIsConfigurationError(t *testing.T) {
	path := writeTempConfig(t, "blocking_fields: [unterminated")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestKernelByNameKnownKernels(t *testing.T) {
	for _, name := range []string{"levenshtein", "jaro", "cosine"} {
		if _, err := KernelByName(name); err != nil {
			t.Errorf("KernelByName(%q) = %v, want no error", name, err)
		}
	}
}

func TestKernelByNameUnknownIsError(t *testing.T) {
	if _, err := KernelByName("soundex"); err == nil {
		t.Error("expected error for unknown kernel name")
	}
}

func TestBuildFunctionsWiresFieldsAndKernels(t *testing.T) {
	cfg := &Config{
		SimilarityFunctions: []FunctionSpec{
			{Field: "name", Kernel: "jaro"},
		},
	}
	fns, err := cfg.BuildFunctions(nil)
	if err != nil {
		t.Fatalf("BuildFunctions: %v", err)
	}
	if len(fns) != 1 || fns[0].FieldName != "name" {
		t.Errorf("fns = %v", fns)
	}
}

func TestBuildFunctionsPropagatesUnknownKernel(t *testing.T) {
	cfg := &Config{
		SimilarityFunctions: []FunctionSpec{{Field: "name", Kernel: "bogus"}},
	}
	if _, err := cfg.BuildFunctions(nil); err == nil {
		t.Error("expected error for unknown kernel in config")
	}
}
