package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TFMV/driftscan/metrics"
)

func createTestReport() RunReport {
	return RunReport{
		Summary: metrics.RunSummary{
			RunID:            "run-123",
			StartedAt:        time.Now().Add(-time.Minute),
			CompletedAt:      time.Now(),
			Duration:         time.Minute,
			ScannedA:         1000,
			ScannedB:         990,
			FieldDifferences: 5,
			MissingInOne:     12,
			Batches:          10,
		},
		Config: ConfigEcho{
			Address:      "http://localhost:9200",
			CollectionA:  "users_v1",
			CollectionB:  "users_v2",
			DocType:      "_doc",
			PageSize:     100,
			Lease:        "2m",
			OutputPath:   "out.csv",
			OutputFormat: "csv",
		},
		Version:     "0.1.0",
		GeneratedAt: time.Now().UTC(),
	}
}

func TestJSONGenerator_Generate(t *testing.T) {
	run := createTestReport()
	generator := &JSONGenerator{}

	data, err := generator.Generate(run)
	if err != nil {
		t.Fatalf("Failed to generate report: %v", err)
	}

	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}

	if decoded.Summary.RunID != "run-123" {
		t.Errorf("Expected run id 'run-123', got %s", decoded.Summary.RunID)
	}
	if decoded.Config.CollectionA != "users_v1" {
		t.Errorf("Expected collection A 'users_v1', got %s", decoded.Config.CollectionA)
	}
}

func TestJSONGenerator_SaveAndLoad(t *testing.T) {
	run := createTestReport()
	generator := &JSONGenerator{}

	tmpDir := t.TempDir()
	filePath := filepath.Join(tmpDir, "run_report.json")

	if err := generator.SaveToFile(run, filePath); err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}

	loaded, err := generator.LoadFromFile(filePath)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}
	if loaded.Summary.MissingInOne != 12 {
		t.Errorf("Expected 12 missing, got %d", loaded.Summary.MissingInOne)
	}
}

func TestHTMLGenerator_Generate(t *testing.T) {
	run := createTestReport()
	generator := &HTMLGenerator{}

	data, err := generator.Generate(run)
	if err != nil {
		t.Fatalf("Failed to generate HTML report: %v", err)
	}

	html := string(data)
	for _, want := range []string{"run-123", "users_v1", "users_v2", "Field differences"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
}

func TestHTMLGenerator_SaveToFile(t *testing.T) {
	run := createTestReport()
	generator := &HTMLGenerator{}

	filePath := filepath.Join(t.TempDir(), "run_report.html")
	if err := generator.SaveToFile(run, filePath); err != nil {
		t.Fatalf("Failed to save report: %v", err)
	}
	if _, err := os.Stat(filePath); err != nil {
		t.Fatalf("Saved report not found: %v", err)
	}
}
