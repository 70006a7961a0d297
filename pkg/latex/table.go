package latex

import "fmt"

// BorderStyle selects the rule lines and vertical boundaries a table is drawn
// with.
type BorderStyle string

const (
	// BorderNone draws no rule lines and no vertical boundaries.
	BorderNone BorderStyle = "none"
	// BorderHorizontal draws rule lines between rows, with no vertical
	// boundaries except a single separator after the row-number column.
	BorderHorizontal BorderStyle = "horizontal"
	// BorderFull draws every boundary: the outer edges, a separator between
	// every column pair, and rule lines above and below every row.
	BorderFull BorderStyle = "full"
)

// FontStyle selects how cell text is styled.
type FontStyle string

const (
	FontNormal FontStyle = "normal"
	FontBold   FontStyle = "bold"
)

// TableConfig describes a single table to generate. Only the dimensions are
// validated; an unrecognized BorderStyle behaves like BorderNone and an
// unrecognized FontStyle behaves like FontNormal.
type TableConfig struct {
	Rows           int         `json:"rows" yaml:"rows"`
	Columns        int         `json:"columns" yaml:"columns"`
	BorderStyle    BorderStyle `json:"border_style" yaml:"border_style"`
	FontStyle      FontStyle   `json:"font_style" yaml:"font_style"`
	HasHeader      bool        `json:"has_header" yaml:"has_header"`
	AutoNumberRows bool        `json:"auto_number_rows" yaml:"auto_number_rows"`
	NumericCells   bool        `json:"numeric_cells" yaml:"numeric_cells"`
}

// Markup holds the two outputs of one generation call. Full is the complete
// table at the requested size. Preview is the same table cut to at most five
// rows and five data columns; it opens the same tabular environment but
// closes with \end{array} so an inline math renderer will accept it, while
// Full closes the document-mode environment.
type Markup struct {
	Full    string `json:"full"`
	Preview string `json:"preview"`
}

// InvalidConfigError reports a TableConfig whose dimensions cannot produce a
// table. It is the only error kind Generate returns.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid table config: %s %s", e.Field, e.Reason)
}

// normalized maps unrecognized style values onto their defaults.
func (c TableConfig) normalized() TableConfig {
	switch c.BorderStyle {
	case BorderHorizontal, BorderFull:
	default:
		c.BorderStyle = BorderNone
	}
	if c.FontStyle != FontBold {
		c.FontStyle = FontNormal
	}
	return c
}

// Validate returns a *InvalidConfigError when Rows or Columns is not
// positive, nil otherwise.
func (c TableConfig) Validate() error {
	if c.Rows <= 0 {
		return &InvalidConfigError{Field: "rows", Reason: fmt.Sprintf("must be positive, got %d", c.Rows)}
	}
	if c.Columns <= 0 {
		return &InvalidConfigError{Field: "columns", Reason: fmt.Sprintf("must be positive, got %d", c.Columns)}
	}
	return nil
}
