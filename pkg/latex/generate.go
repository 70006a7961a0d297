package latex

import (
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

// The preview output is cut to at most this many rows and data columns.
const (
	previewMaxRows    = 5
	previewMaxColumns = 5
)

// rowNumberLabel is the header cell above the row-number column.
const rowNumberLabel = "No."

// generateOptions is used by Generate to configure per-call options.
type generateOptions struct {
	src *rand.Rand
}

// Option is a function that configures a single Generate call. It's used as a
// variadic argument to Generate.
type Option func(*generateOptions)

// WithRand sets the random source used for numeric cell values. Passing a
// seeded source makes the output fully deterministic. By default the shared
// top-level source is used.
func WithRand(r *rand.Rand) Option {
	return func(o *generateOptions) { o.src = r }
}

// Generate renders the table described by cfg and returns the full markup
// together with its bounded preview. Cell values are computed once, so every
// cell visible in the preview is byte-identical to its counterpart in the
// full table. It returns a *InvalidConfigError, and no output, when cfg has
// non-positive dimensions.
func Generate(cfg TableConfig, opts ...Option) (Markup, error) {
	if err := cfg.Validate(); err != nil {
		return Markup{}, err
	}
	cfg = cfg.normalized()

	options := &generateOptions{}
	for _, opt := range opts {
		opt(options)
	}

	cells := make([][]string, cfg.Rows)
	for i := range cells {
		row := make([]string, cfg.Columns)
		for j := range row {
			if cfg.NumericCells {
				row[j] = formatNumericCell(randomFloat(options.src))
			} else {
				row[j] = "Column" + strconv.Itoa(j+1)
			}
		}
		cells[i] = row
	}

	previewRows := min(cfg.Rows, previewMaxRows)
	previewColumns := min(cfg.Columns, previewMaxColumns)

	return Markup{
		Full:    writeTable(cfg, cells, cfg.Rows, cfg.Columns, "\\end{tabular}"),
		Preview: writeTable(cfg, cells, previewRows, previewColumns, "\\end{array}"),
	}, nil
}

// writeTable renders one table over the first rows x columns entries of
// cells. Generate calls it twice, once with the full dimensions and once
// with the preview bounds, so both outputs share a single code path. The
// close directive differs between the two: the preview closes a math-mode
// array for inline renderers, the full table closes its tabular environment.
func writeTable(cfg TableConfig, cells [][]string, rows, columns int, closeDirective string) string {
	var builder strings.Builder
	builder.Grow((rows + 2) * (columns + 1) * 16)

	builder.WriteString("\\begin{tabular}{")
	builder.WriteString(columnSpec(cfg, columns))
	builder.WriteString("}\n")
	if cfg.BorderStyle == BorderFull {
		builder.WriteString("\\hline\n")
	}

	if cfg.HasHeader {
		header := make([]string, 0, columns+1)
		if cfg.AutoNumberRows {
			header = append(header, applyStyle(rowNumberLabel, cfg.FontStyle))
		}
		for j := 0; j < columns; j++ {
			header = append(header, applyStyle("Header "+strconv.Itoa(j+1), cfg.FontStyle))
		}
		writeRow(&builder, header)
		if cfg.BorderStyle != BorderNone {
			builder.WriteString("\\hline\n")
		}
	}

	row := make([]string, 0, columns+1)
	for i := 1; i <= rows; i++ {
		row = row[:0]
		if cfg.AutoNumberRows {
			row = append(row, applyStyle(strconv.Itoa(i), cfg.FontStyle))
		}
		for j := 0; j < columns; j++ {
			row = append(row, applyStyle(cells[i-1][j], cfg.FontStyle))
		}
		writeRow(&builder, row)
		if i < rows && cfg.BorderStyle != BorderNone {
			builder.WriteString("\\hline\n")
		}
	}

	if cfg.BorderStyle == BorderFull {
		builder.WriteString("\\hline\n")
	}
	builder.WriteString(closeDirective)
	return builder.String()
}

// columnSpec builds the column specification for the given data column
// count, plus the row-number column when enabled.
func columnSpec(cfg TableConfig, columns int) string {
	total := columns
	if cfg.AutoNumberRows {
		total++
	}
	if cfg.BorderStyle == BorderFull {
		var builder strings.Builder
		builder.Grow(2*total + 1)
		builder.WriteString("|")
		for i := 0; i < total; i++ {
			builder.WriteString("c|")
		}
		return builder.String()
	}
	specs := make([]string, total)
	for i := range specs {
		specs[i] = "c"
	}
	if cfg.BorderStyle == BorderHorizontal && cfg.AutoNumberRows {
		specs[0] = "c|"
	}
	return strings.Join(specs, " ")
}

// writeRow joins styled cells with the column separator and terminates the
// row.
func writeRow(builder *strings.Builder, cells []string) {
	builder.WriteString(strings.Join(cells, " & "))
	builder.WriteString(" \\\\\n")
}

// applyStyle wraps text in a bold directive when style is FontBold; any
// other style returns text unchanged.
func applyStyle(text string, style FontStyle) string {
	if style == FontBold {
		return "\\textbf{" + text + "}"
	}
	return text
}

// formatNumericCell cuts v down to four decimal places and formats it with
// trailing zeros dropped, so 0.5 renders as "0.5" rather than "0.5000".
// Truncating instead of rounding keeps every value below 1.
func formatNumericCell(v float64) string {
	return strconv.FormatFloat(math.Floor(v*10000)/10000, 'f', -1, 64)
}

func randomFloat(src *rand.Rand) float64 {
	if src != nil {
		return src.Float64()
	}
	return rand.Float64()
}
