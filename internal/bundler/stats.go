package bundler

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/evanw/esbuild/pkg/api"
)

// File is one emitted output, Path is relative to the output directory and
// slash separated.
type File struct {
	Path     string
	Contents []byte
	Hash     string
}

// Stats describes a finished build.
type Stats struct {
	Hash      string
	Duration  time.Duration
	Files     []File
	Errors    []api.Message
	Warnings  []api.Message
	Metafile  string
	OutputDir string
}

// HasErrors reports whether the build failed.
func (s *Stats) HasErrors() bool {
	return s != nil && len(s.Errors) > 0
}

// ErrorTexts returns the error messages formatted for display.
func (s *Stats) ErrorTexts() []string {
	return formatMessages(s.Errors, api.ErrorMessage, false)
}

// WarningTexts returns the warning messages formatted for display.
func (s *Stats) WarningTexts() []string {
	return formatMessages(s.Warnings, api.WarningMessage, false)
}

// Summary renders the build hash, timing, a size table and the per chunk
// module breakdown.
func (s *Stats) Summary(color bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Hash: %s\n", s.Hash)
	fmt.Fprintf(&sb, "Time: %dms\n", s.Duration.Milliseconds())

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Asset\tSize\t")
	for _, f := range s.Files {
		fmt.Fprintf(tw, "%s\t%s\t\n", f.Path, humanSize(len(f.Contents)))
	}
	_ = tw.Flush()

	if s.Metafile != "" {
		sb.WriteString(api.AnalyzeMetafile(s.Metafile, api.AnalyzeMetafileOptions{Color: color}))
	}

	for _, w := range formatMessages(s.Warnings, api.WarningMessage, color) {
		sb.WriteString(w)
	}
	for _, e := range formatMessages(s.Errors, api.ErrorMessage, color) {
		sb.WriteString(e)
	}

	return sb.String()
}

// BundlerError is returned when the bundler reports errors.
type BundlerError struct {
	Message string
	Details []string
}

func (e *BundlerError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + "\n" + strings.Join(e.Details, "")
}

func newBundlerError(msgs []api.Message) *BundlerError {
	return &BundlerError{
		Message: fmt.Sprintf("bundler failed with %d error(s)", len(msgs)),
		Details: formatMessages(msgs, api.ErrorMessage, false),
	}
}

func formatMessages(msgs []api.Message, kind api.MessageKind, color bool) []string {
	if len(msgs) == 0 {
		return nil
	}
	return api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: kind, Color: color})
}

// buildHash derives a stable hash from the output paths and content hashes.
func buildHash(files []File) string {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	d := xxhash.New()
	for _, f := range sorted {
		_, _ = d.WriteString(f.Path)
		_, _ = d.WriteString(f.Hash)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

func contentHash(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
