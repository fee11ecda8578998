package report

import (
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"

	"github.com/hupe1980/vecann/index"
)

// Format selects the output format of a Writer.
type Format string

const (
	// FormatText renders styled sections for terminals.
	FormatText Format = "text"
	// FormatYAML renders one YAML document per section.
	FormatYAML Format = "yaml"
)

// Theme defines the color scheme of the text format.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Value lipgloss.Style
	Dim   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Foreground(t.Primary),
		Value: lipgloss.NewStyle(),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Writer prints report sections to an io.Writer.
type Writer struct {
	w      io.Writer
	format Format
	styles Styles

	// MaxQueries limits the queries printed by Results. 0 prints all.
	MaxQueries int
}

// NewWriter creates a Writer. An empty format selects FormatText.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	switch format {
	case "":
		format = FormatText
	case FormatText, FormatYAML:
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	return &Writer{w: w, format: format, styles: NewStyles(DefaultTheme)}, nil
}

type statsDoc struct {
	Index statsBody `yaml:"index"`
}

type statsBody struct {
	ID          string        `yaml:"id"`
	Kind        string        `yaml:"kind"`
	Len         int           `yaml:"n"`
	Dim         int           `yaml:"dim"`
	Metric      string        `yaml:"metric"`
	MemoryBytes int64         `yaml:"memory_bytes"`
	Fields      yaml.MapSlice `yaml:"fields,omitempty"`
	BuildTime   string        `yaml:"build_time,omitempty"`
}

// Stats prints the statistics of a built index. A zero buildTime is omitted.
func (rw *Writer) Stats(st index.Stats, buildTime time.Duration) error {
	if rw.format == FormatYAML {
		body := statsBody{
			ID:          st.ID.String(),
			Kind:        st.Kind.String(),
			Len:         st.Len,
			Dim:         st.Dim,
			Metric:      st.Metric.String(),
			MemoryBytes: st.MemoryBytes,
		}
		for _, f := range st.Fields {
			body.Fields = append(body.Fields, yaml.MapItem{Key: f.Name, Value: f.Value})
		}
		if buildTime > 0 {
			body.BuildTime = buildTime.String()
		}
		return rw.yaml(statsDoc{Index: body})
	}

	var b strings.Builder
	b.WriteString(rw.styles.Title.Render(fmt.Sprintf("%s index", st.Kind)) + "\n")
	rw.field(&b, "id", st.ID)
	rw.field(&b, "vectors", st.Len)
	rw.field(&b, "dim", st.Dim)
	rw.field(&b, "metric", st.Metric)
	rw.field(&b, "memory", formatBytes(st.MemoryBytes))
	for _, f := range st.Fields {
		rw.field(&b, f.Name, f.Value)
	}
	if buildTime > 0 {
		rw.field(&b, "build_time", buildTime)
	}
	return rw.write(b.String())
}

type queryDoc struct {
	Query int       `yaml:"query"`
	Hits  []hitBody `yaml:"hits"`
}

type hitBody struct {
	ID       uint32  `yaml:"id"`
	Distance float32 `yaml:"distance"`
}

// Results prints the (id, distance) hits of every query in order.
func (rw *Writer) Results(all iter.Seq2[int, []index.SearchResult]) error {
	var docs []queryDoc
	var b strings.Builder
	b.WriteString(rw.styles.Title.Render("results") + "\n")

	printed, skipped := 0, 0
	for i, hits := range all {
		if rw.MaxQueries > 0 && printed >= rw.MaxQueries {
			skipped++
			continue
		}
		printed++

		if rw.format == FormatYAML {
			doc := queryDoc{Query: i, Hits: make([]hitBody, len(hits))}
			for j, h := range hits {
				doc.Hits[j] = hitBody{ID: h.ID, Distance: h.Distance}
			}
			docs = append(docs, doc)
			continue
		}

		parts := make([]string, len(hits))
		for j, h := range hits {
			parts[j] = fmt.Sprintf("%d:%.4g", h.ID, h.Distance)
		}
		b.WriteString(rw.styles.Label.Render(fmt.Sprintf("  q%-4d", i)) + " " + strings.Join(parts, " ") + "\n")
	}

	if rw.format == FormatYAML {
		return rw.yaml(map[string][]queryDoc{"results": docs})
	}
	if skipped > 0 {
		b.WriteString(rw.styles.Dim.Render(fmt.Sprintf("  ... %d more queries", skipped)) + "\n")
	}
	return rw.write(b.String())
}

// Recall prints the mean recall@k of a search against exact ground truth.
func (rw *Writer) Recall(k int, recall float64, searchTime time.Duration) error {
	if rw.format == FormatYAML {
		return rw.yaml(map[string]any{
			"recall": map[string]any{
				"k":           k,
				"value":       recall,
				"search_time": searchTime.String(),
			},
		})
	}

	var b strings.Builder
	b.WriteString(rw.styles.Title.Render("search") + "\n")
	rw.field(&b, fmt.Sprintf("recall@%d", k), fmt.Sprintf("%.4f", recall))
	rw.field(&b, "search_time", searchTime)
	return rw.write(b.String())
}

func (rw *Writer) field(b *strings.Builder, name string, value any) {
	b.WriteString("  " + rw.styles.Label.Render(fmt.Sprintf("%-20s", name)) + " " + rw.styles.Value.Render(fmt.Sprint(value)) + "\n")
}

func (rw *Writer) yaml(doc any) error {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	return rw.write("---\n" + string(out))
}

func (rw *Writer) write(s string) error {
	_, err := io.WriteString(rw.w, s)
	return err
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
