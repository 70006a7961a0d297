package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Lector07/textab/pkg/latex"
)

// loadTableSpec reads a table configuration from a YAML file. Unknown keys
// and non-numeric dimension values are rejected, so a typo in a spec file
// surfaces as an error instead of a silently different table.
func loadTableSpec(path string) (latex.TableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return latex.TableConfig{}, fmt.Errorf("failed to read table spec: %w", err)
	}

	var cfg latex.TableConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return latex.TableConfig{}, fmt.Errorf("failed to parse table spec %s: %w", path, err)
	}
	return cfg, nil
}
