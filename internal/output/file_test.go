package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ghanalyzer/internal/analyzer"
)

func TestFileSink_WritesLastReportOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "result.json")
	s, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := s.Write(NewReport(successState(), nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got Report
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, b)
	}
	if got.Username != "octocat" || got.Status != StatusSuccess || got.Languages.Bytes("Go") != 300 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if strings.Join(got.Languages.Languages(), ",") != "Go,Rust" {
		t.Fatalf("language order lost: %v", got.Languages.Languages())
	}
}

func TestFileSink_CloseWithoutReportRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.json")
	s, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file after Close without a report (err=%v)", err)
	}
}

func TestFileSink_RejectsNonJSONPath(t *testing.T) {
	for _, p := range []string{"", "out.ndjson", "out"} {
		if _, err := NewFileSink(filepath.Join(t.TempDir(), p)); err == nil {
			t.Fatalf("NewFileSink(%q) expected error", p)
		}
	}
}

func TestChartSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charts", "langs.svg")
	s, err := NewChartSink(path, 320)
	if err != nil {
		t.Fatalf("NewChartSink: %v", err)
	}

	failed := NewReport(analyzer.State{Phase: analyzer.PhaseFailed, Message: analyzer.MsgGeneric}, nil)
	if err := s.Write(failed); err != nil {
		t.Fatalf("Write failed report: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("failed report created a chart file (err=%v)", err)
	}

	if err := s.Write(NewReport(successState(), nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	svg := string(b)
	if !strings.HasPrefix(svg, "<svg") || !strings.Contains(svg, `width="320"`) || !strings.Contains(svg, "Go (75.0%)") {
		t.Fatalf("unexpected svg:\n%s", svg)
	}
}

func TestNewChartSink_RejectsNonSVGPath(t *testing.T) {
	if _, err := NewChartSink("chart.png", 0); err == nil {
		t.Fatalf("expected error")
	}
}
