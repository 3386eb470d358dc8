package export

import "fmt"

// Column describes one exported field. Key indexes the row map and Title is the printed header.
type Column struct {
	Key   string
	Title string
	Width float64
}

// Dataset is tabular export content with ordered columns.
type Dataset struct {
	Title   string
	Notes   []string
	Columns []Column
	Rows    []map[string]string
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// Headers returns the printable column titles.
func (d Dataset) Headers() []string {
	headers := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		headers[i] = col.Title
		if headers[i] == "" {
			headers[i] = col.Key
		}
	}
	return headers
}

func (d Dataset) record(row map[string]string) []string {
	values := make([]string, len(d.Columns))
	for i, col := range d.Columns {
		values[i] = row[col.Key]
	}
	return values
}

func (d Dataset) validate() error {
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset requires at least one column")
	}
	return nil
}

// ForFormat returns the renderer registered for the format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "csv":
		return NewCSVExporter(), nil
	case "pdf":
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
