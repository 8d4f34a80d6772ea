// Package report generates run reports from a completed comparison.
package report

import (
	"bytes"
	"encoding/json"
	"html/template"
	"os"
	"time"

	"github.com/TFMV/driftscan/metrics"
)

// -----------------------------
// Report Payload
// -----------------------------

// ConfigEcho is the subset of the run configuration worth recording with
// the results. Credentials never belong here.
type ConfigEcho struct {
	Address      string   `json:"address"`
	CollectionA  string   `json:"collection_a"`
	CollectionB  string   `json:"collection_b"`
	DocType      string   `json:"doc_type"`
	PageSize     int      `json:"page_size"`
	Lease        string   `json:"lease"`
	ExcludePaths []string `json:"exclude_paths,omitempty"`
	OutputPath   string   `json:"output_path"`
	OutputFormat string   `json:"output_format"`
}

// RunReport is the full payload of a run report.
type RunReport struct {
	Summary     metrics.RunSummary `json:"summary"`
	Config      ConfigEcho         `json:"config"`
	Version     string             `json:"version"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// -----------------------------
// Report Generator Interfaces
// -----------------------------

// Generator defines the methods for generating run reports.
type Generator interface {
	Generate(run RunReport) ([]byte, error)
	SaveToFile(run RunReport, filePath string) error
}

// -----------------------------
// JSON Report Generator
// -----------------------------

// JSONGenerator generates JSON reports.
type JSONGenerator struct{}

// Generate serializes the RunReport to indented JSON.
func (j *JSONGenerator) Generate(run RunReport) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// SaveToFile saves the JSON report to a file.
func (j *JSONGenerator) SaveToFile(run RunReport, filePath string) error {
	data, err := j.Generate(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// LoadFromFile reads a previously saved JSON report.
func (j *JSONGenerator) LoadFromFile(filePath string) (RunReport, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return RunReport{}, err
	}
	var run RunReport
	if err := json.Unmarshal(data, &run); err != nil {
		return RunReport{}, err
	}
	return run, nil
}

// -----------------------------
// HTML Report Generator
// -----------------------------

// HTMLGenerator generates HTML reports.
type HTMLGenerator struct{}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<title>driftscan run {{.Summary.RunID}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 10px; text-align: left; }
</style>
</head>
<body>
<h1>Comparison Run Report</h1>
<p>Run {{.Summary.RunID}} &mdash; generated {{.GeneratedAt.Format "2006-01-02 15:04:05"}} (driftscan {{.Version}})</p>
<h2>Collections</h2>
<table>
<tr><th>Store</th><td>{{.Config.Address}}</td></tr>
<tr><th>Collection A</th><td>{{.Config.CollectionA}}</td></tr>
<tr><th>Collection B</th><td>{{.Config.CollectionB}}</td></tr>
<tr><th>Page size</th><td>{{.Config.PageSize}}</td></tr>
<tr><th>Lease</th><td>{{.Config.Lease}}</td></tr>
<tr><th>Output</th><td>{{.Config.OutputPath}} ({{.Config.OutputFormat}})</td></tr>
</table>
<h2>Summary</h2>
<table>
<tr><th>Documents scanned in A</th><td>{{.Summary.ScannedA}}</td></tr>
<tr><th>Documents scanned in B</th><td>{{.Summary.ScannedB}}</td></tr>
<tr><th>Field differences</th><td>{{.Summary.FieldDifferences}}</td></tr>
<tr><th>Missing in one</th><td>{{.Summary.MissingInOne}}</td></tr>
<tr><th>Batches</th><td>{{.Summary.Batches}}</td></tr>
<tr><th>Duration</th><td>{{.Summary.Duration}}</td></tr>
</table>
</body>
</html>
`

// Generate renders the RunReport as a standalone HTML page.
func (h *HTMLGenerator) Generate(run RunReport) ([]byte, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveToFile saves the HTML report to a file.
func (h *HTMLGenerator) SaveToFile(run RunReport, filePath string) error {
	data, err := h.Generate(run)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
