package plugins

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Metafile is the subset of esbuild's metafile the report reads.
type Metafile struct {
	Inputs  map[string]MetaInput  `json:"inputs"`
	Outputs map[string]MetaOutput `json:"outputs"`
}

// MetaInput is one bundled source file.
type MetaInput struct {
	Bytes int `json:"bytes"`
}

// MetaOutput is one emitted file.
type MetaOutput struct {
	Bytes      int                        `json:"bytes"`
	EntryPoint string                     `json:"entryPoint,omitempty"`
	Inputs     map[string]MetaOutputInput `json:"inputs"`
}

// MetaOutputInput is a source file's contribution to an output.
type MetaOutputInput struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// Stats is the bundle report.
type Stats struct {
	Outputs    []OutputStats `json:"outputs"`
	TotalBytes int           `json:"total_bytes"`
	TotalGzip  int           `json:"total_gzip,omitempty"`
}

// OutputStats describes one emitted file and its largest inputs.
type OutputStats struct {
	Path       string       `json:"path"`
	EntryPoint string       `json:"entry_point,omitempty"`
	Bytes      int          `json:"bytes"`
	GzipBytes  int          `json:"gzip_bytes,omitempty"`
	Inputs     []InputStats `json:"inputs"`
}

// InputStats is one source file inside an output.
type InputStats struct {
	Path    string  `json:"path"`
	Bytes   int     `json:"bytes"`
	Percent float64 `json:"percent"`
}

// ParseMetafile decodes an esbuild metafile.
func ParseMetafile(raw string) (*Metafile, error) {
	var m Metafile
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	return &m, nil
}

// ComputeStats summarizes m. contents returns an output's bytes for gzip
// sizing; a nil contents skips gzip sizes.
func ComputeStats(m *Metafile, contents func(path string) ([]byte, bool)) Stats {
	var s Stats
	for path, out := range m.Outputs {
		o := OutputStats{Path: path, EntryPoint: out.EntryPoint, Bytes: out.Bytes}
		for in, contrib := range out.Inputs {
			is := InputStats{Path: in, Bytes: contrib.BytesInOutput}
			if out.Bytes > 0 {
				is.Percent = float64(contrib.BytesInOutput) * 100 / float64(out.Bytes)
			}
			o.Inputs = append(o.Inputs, is)
		}
		sort.Slice(o.Inputs, func(i, j int) bool {
			if o.Inputs[i].Bytes != o.Inputs[j].Bytes {
				return o.Inputs[i].Bytes > o.Inputs[j].Bytes
			}
			return o.Inputs[i].Path < o.Inputs[j].Path
		})
		if contents != nil {
			if data, ok := contents(path); ok {
				o.GzipBytes = gzipSize(data)
			}
		}
		s.TotalBytes += o.Bytes
		s.TotalGzip += o.GzipBytes
		s.Outputs = append(s.Outputs, o)
	}
	sort.Slice(s.Outputs, func(i, j int) bool {
		if s.Outputs[i].Bytes != s.Outputs[j].Bytes {
			return s.Outputs[i].Bytes > s.Outputs[j].Bytes
		}
		return s.Outputs[i].Path < s.Outputs[j].Path
	})
	return s
}

func gzipSize(data []byte) int {
	var buf bytes.Buffer
	zw, _ := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Len()
}

var statsPrinter = message.NewPrinter(language.English)

// FormatBytes renders n with thousands separators.
func FormatBytes(n int) string {
	return statsPrinter.Sprintf("%d B", n)
}

var statsTemplate = template.Must(template.New("stats").Funcs(template.FuncMap{
	"bytes":   FormatBytes,
	"percent": func(p float64) string { return fmt.Sprintf("%.1f%%", p) },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Bundle report</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
td.num { text-align: right; font-variant-numeric: tabular-nums; }
.bar { background: #4e79a7; height: 8px; }
</style>
</head>
<body>
<h1>Bundle report</h1>
<p>Total: {{bytes .TotalBytes}}{{if .TotalGzip}} ({{bytes .TotalGzip}} gzip){{end}}</p>
{{range .Outputs}}
<h2>{{.Path}}</h2>
<p>{{bytes .Bytes}}{{if .GzipBytes}} ({{bytes .GzipBytes}} gzip){{end}}{{if .EntryPoint}}, entry {{.EntryPoint}}{{end}}</p>
<table>
<tr><th>Input</th><th>Size</th><th>Share</th><th></th></tr>
{{range .Inputs}}<tr><td>{{.Path}}</td><td class="num">{{bytes .Bytes}}</td><td class="num">{{percent .Percent}}</td><td><div class="bar" style="width: {{printf "%.0f" .Percent}}%"></div></td></tr>
{{end}}</table>
{{end}}
</body>
</html>
`))

// WriteStatsHTML renders s as an HTML report at path.
func WriteStatsHTML(path string, s Stats) error {
	var buf bytes.Buffer
	if err := statsTemplate.Execute(&buf, s); err != nil {
		return fmt.Errorf("failed to render bundle report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write bundle report: %w", err)
	}
	return nil
}

func newVisualizer(env Env) Plugin {
	cfg := env.Config.Visualizer
	logger := env.Logger.With("plugin", NameVisualizer)

	return Plugin{
		Name: NameVisualizer,
		Configure: func(opts *api.BuildOptions) {
			opts.Metafile = true
		},
		Setup: func(build api.PluginBuild) {
			root := env.Build.Root
			if build.InitialOptions.AbsWorkingDir != "" {
				root = build.InitialOptions.AbsWorkingDir
			}
			report := cfg.Filename
			if report == "" {
				report = filepath.Join(env.Build.Root, "stats.html")
			}

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 || result.Metafile == "" {
					return api.OnEndResult{}, nil
				}
				meta, err := ParseMetafile(result.Metafile)
				if err != nil {
					return api.OnEndResult{}, err
				}

				var contents func(string) ([]byte, bool)
				if cfg.GzipSize {
					contents = outputContents(result.OutputFiles, root)
				}
				stats := ComputeStats(meta, contents)
				if err := WriteStatsHTML(report, stats); err != nil {
					return api.OnEndResult{}, err
				}

				logger.Debug("bundle analysis\n" + api.AnalyzeMetafile(result.Metafile, api.AnalyzeMetafileOptions{}))
				logger.Info("wrote bundle report", "path", report, "outputs", len(stats.Outputs), "bytes", stats.TotalBytes)
				return api.OnEndResult{}, nil
			})
		},
	}
}

// outputContents serves output bytes from the in-memory result when the
// build did not write to disk, and from disk otherwise. Metafile paths are
// relative to the working directory.
func outputContents(files []api.OutputFile, root string) func(string) ([]byte, bool) {
	byPath := make(map[string][]byte, len(files))
	for _, f := range files {
		byPath[f.Path] = f.Contents
	}
	return func(path string) ([]byte, bool) {
		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, path)
		}
		if data, ok := byPath[abs]; ok {
			return data, true
		}
		data, err := os.ReadFile(abs) //nolint:gosec // G304: path comes from the bundler's metafile
		if err != nil {
			return nil, false
		}
		return data, true
	}
}
