package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ghanalyzer/internal/chart"
)

// FileSink writes the last report it received as a JSON document on Close.
type FileSink struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	report *Report
}

func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, fmt.Errorf("unsupported output file extension %q (want .json)", ext)
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &FileSink{path: path, file: f}, nil
}

func (s *FileSink) Write(r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = &r
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.report != nil {
		enc := json.NewEncoder(s.file)
		enc.SetIndent("", "  ")
		err = enc.Encode(s.report)
	}
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	// Nothing was analyzed; leave no empty file behind.
	if s.report == nil {
		if rmErr := os.Remove(s.path); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// ChartSink renders the language chart of a successful report to an SVG
// file. Failed reports leave no file behind.
type ChartSink struct {
	path  string
	width int
}

func NewChartSink(path string, width int) (*ChartSink, error) {
	if path == "" {
		return nil, fmt.Errorf("chart path required")
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".svg" {
		return nil, fmt.Errorf("unsupported chart file extension %q (want .svg)", ext)
	}
	return &ChartSink{path: path, width: width}, nil
}

func (s *ChartSink) Write(r Report) error {
	if r.Failed() || r.Chart == nil {
		return nil
	}
	svg, err := chart.RenderSVG(*r.Chart, chart.Options{
		Width: s.width,
		Title: "Languages used by " + r.Username,
	})
	if err != nil {
		return err
	}
	if err := ensureDir(s.path); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, svg, 0o644); err != nil {
		return fmt.Errorf("failed to write chart file: %w", err)
	}
	return nil
}

func (s *ChartSink) Close() error {
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}
