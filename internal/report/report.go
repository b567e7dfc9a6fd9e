// Package report renders a finished pipeline run into human-readable
// output. It defines the Renderer seam plus a Markdown checklist
// implementation; richer JSON/terminal rendering can add further
// implementations without touching the pipeline.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/tariktz/linkwarden/internal/client"
	"github.com/tariktz/linkwarden/internal/pipeline"
)

// Renderer turns a batch of pipeline results into a report. cmd/ wires a
// concrete Renderer after a run completes; the core pipeline never depends
// on one.
type Renderer interface {
	Render(w io.Writer, results []pipeline.Response) error
}

// MarkdownRenderer writes a checklist of every link that did not come back
// clean, each entry annotated with the source value(s) it was found in.
type MarkdownRenderer struct{}

type task struct {
	uri     string
	status  string
	sources []string
}

func (MarkdownRenderer) Render(w io.Writer, results []pipeline.Response) error {
	bw := bufio.NewWriter(w)

	byURI := map[string]*task{}
	var order []string
	for _, r := range results {
		if !isBroken(r) {
			continue
		}
		key := r.URI.String()
		if key == "" {
			continue
		}
		t, ok := byURI[key]
		if !ok {
			t = &task{uri: key, status: statusLabel(r)}
			byURI[key] = t
			order = append(order, key)
		}
		if r.SourceValue != "" {
			t.sources = append(t.sources, r.SourceValue)
		}
	}
	sort.Strings(order)

	if _, err := bw.WriteString("# Link Cleanup Tasks\n\n"); err != nil {
		return err
	}
	if len(order) == 0 {
		if _, err := bw.WriteString("No broken links were found in this run.\n"); err != nil {
			return err
		}
		return bw.Flush()
	}

	for i, key := range order {
		t := byURI[key]
		if _, err := fmt.Fprintf(bw, "- [ ] Fix `%s` (status: %s)\n", t.uri, t.status); err != nil {
			return err
		}
		if len(t.sources) == 0 {
			if _, err := bw.WriteString("  - Found on: (source not captured)\n"); err != nil {
				return err
			}
		} else {
			sort.Strings(t.sources)
			for _, s := range t.sources {
				if _, err := fmt.Fprintf(bw, "  - Found on: `%s`\n", s); err != nil {
					return err
				}
			}
		}
		if i < len(order)-1 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func isBroken(r pipeline.Response) bool {
	if r.Excluded || r.URI.String() == "" {
		return false
	}
	if r.Err != nil {
		return true
	}
	switch r.Status.Kind {
	case client.StatusOk, client.StatusRedirected:
		return false
	default:
		return true
	}
}

func statusLabel(r pipeline.Response) string {
	if r.Status.Code != 0 {
		return fmt.Sprintf("%d", r.Status.Code)
	}
	if r.Status.Kind == client.StatusTimeout {
		return "timeout"
	}
	return "request_failed"
}

// WriteFile renders results with r and writes the output to outputPath,
// creating parent directories as needed.
func WriteFile(outputPath string, r Renderer, results []pipeline.Response) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create report output directory: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create report output file: %w", err)
	}
	if err := r.Render(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}
