package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lector07/textab/pkg/latex"
)

func writeSpecFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTableSpec(t *testing.T) {
	path := writeSpecFile(t, `
rows: 4
columns: 3
border_style: horizontal
font_style: bold
has_header: true
auto_number_rows: true
numeric_cells: false
`)

	cfg, err := loadTableSpec(path)
	require.NoError(t, err)
	assert.Equal(t, latex.TableConfig{
		Rows:           4,
		Columns:        3,
		BorderStyle:    latex.BorderHorizontal,
		FontStyle:      latex.FontBold,
		HasHeader:      true,
		AutoNumberRows: true,
	}, cfg)
}

func TestLoadTableSpecPartial(t *testing.T) {
	path := writeSpecFile(t, "rows: 2\ncolumns: 5\n")

	cfg, err := loadTableSpec(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Rows)
	assert.Equal(t, 5, cfg.Columns)
	assert.False(t, cfg.HasHeader)
	assert.Empty(t, string(cfg.BorderStyle))
}

func TestLoadTableSpecRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "rows: 2\ncolumns: 3\nborders: full\n"},
		{"non-numeric rows", "rows: three\ncolumns: 3\n"},
		{"not a mapping", "- rows\n- columns\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadTableSpec(writeSpecFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadTableSpecMissingFile(t *testing.T) {
	_, err := loadTableSpec(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
