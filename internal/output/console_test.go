package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/data/models"
)

func successState() analyzer.State {
	tally := models.NewLanguageTally()
	tally.Add("Go", 300)
	tally.Add("Rust", 100)
	return analyzer.State{
		Phase:    analyzer.PhaseSuccess,
		Username: "octocat",
		Profile: &models.UserProfile{
			Login:       "octocat",
			Name:        "The Octocat",
			Bio:         "Hello https://github.blog",
			Followers:   10,
			Following:   2,
			PublicRepos: 2,
			HTMLURL:     "https://github.com/octocat",
		},
		Repos: []models.Repository{
			{ID: 1, Name: "alpha", Description: strings.Repeat("long description ", 10), HTMLURL: "https://github.com/octocat/alpha"},
			{ID: 2, Name: "beta", HTMLURL: "https://github.com/octocat/beta"},
		},
		Tally:      tally,
		StartedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC),
	}
}

func TestConsoleSink_Text(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewConsoleSink(&buf, FormatText, true)
	if err != nil {
		t.Fatalf("NewConsoleSink: %v", err)
	}
	if err := sink.Write(NewReport(successState(), nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"The Octocat (@octocat)\n",
		"Hello https://github.blog\n",
		"Followers: 10  Following: 2  Public Repos: 2\n",
		"Languages Used\n",
		"  Go     75.0%  300 bytes\n",
		"  Rust   25.0%  100 bytes\n",
		"Repositories (2)\n",
		"    https://github.com/octocat/alpha\n",
		"  beta\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("colour codes written with noColor:\n%q", out)
	}

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  alpha - ") && !strings.HasSuffix(line, "...") {
			t.Errorf("long description not truncated: %q", line)
		}
	}
}

func TestConsoleSink_TextEmptyStates(t *testing.T) {
	st := analyzer.State{
		Phase:    analyzer.PhaseSuccess,
		Username: "blank",
		Profile:  &models.UserProfile{Login: "blank"},
		Repos:    []models.Repository{},
		Tally:    models.NewLanguageTally(),
	}
	var buf bytes.Buffer
	sink, _ := NewConsoleSink(&buf, FormatText, true)
	if err := sink.Write(NewReport(st, nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"blank\n", "No bio available.", "No language data available.", "Repositories (0)", "No public repositories."} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestConsoleSink_TextFailure(t *testing.T) {
	var buf bytes.Buffer
	sink, _ := NewConsoleSink(&buf, FormatText, true)
	st := analyzer.State{Phase: analyzer.PhaseFailed, Username: "ghost", Message: analyzer.MsgNotFound}
	if err := sink.Write(NewReport(st, nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got, want := buf.String(), "Error: "+analyzer.MsgNotFound+"\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestConsoleSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewConsoleSink(&buf, FormatJSON, false)
	if err != nil {
		t.Fatalf("NewConsoleSink: %v", err)
	}
	if err := sink.Write(NewReport(successState(), nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var got struct {
		Username  string            `json:"username"`
		Status    string            `json:"status"`
		Message   string            `json:"message"`
		Languages map[string]int64  `json:"languages"`
		Repos     []json.RawMessage `json:"repos"`
		Chart     struct {
			Total int64 `json:"total"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if got.Username != "octocat" || got.Status != StatusSuccess || got.Message != "" {
		t.Fatalf("unexpected report: %+v", got)
	}
	if got.Languages["Go"] != 300 || len(got.Repos) != 2 || got.Chart.Total != 400 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if strings.Index(buf.String(), `"Go"`) > strings.Index(buf.String(), `"Rust"`) {
		t.Fatalf("languages out of order:\n%s", buf.String())
	}
}

func TestNewConsoleSink_UnsupportedFormat(t *testing.T) {
	if _, err := NewConsoleSink(&bytes.Buffer{}, "ndjson", false); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewReport_NonSuccessIsFailed(t *testing.T) {
	r := NewReport(analyzer.State{Phase: analyzer.PhaseIdle, Username: "x"}, nil)
	if !r.Failed() || r.Message != analyzer.MsgGeneric || r.Profile != nil || r.Chart != nil {
		t.Fatalf("unexpected report: %+v", r)
	}
}
