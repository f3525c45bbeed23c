package output

import (
	"time"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/chart"
	"ghanalyzer/internal/data/models"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Report is the outcome of one analyze run as written by the sinks.
//
// Profile, Languages and Chart are set only for a successful run; Message only
// for a failed one.
type Report struct {
	Username   string                `json:"username"`
	Status     string                `json:"status"`
	Message    string                `json:"message,omitempty"`
	Profile    *models.UserProfile   `json:"profile,omitempty"`
	Repos      []models.Repository   `json:"repos"`
	Languages  *models.LanguageTally `json:"languages"`
	Chart      *chart.Pie            `json:"chart,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

func (r Report) Failed() bool {
	return r.Status != StatusSuccess
}

// NewReport converts a terminal controller state. Any non-success phase is
// reported as failed.
func NewReport(st analyzer.State, palette []string) Report {
	r := Report{
		Username:   st.Username,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
	}
	if st.Phase != analyzer.PhaseSuccess {
		r.Status = StatusFailed
		r.Message = st.Message
		if r.Message == "" {
			r.Message = analyzer.MsgGeneric
		}
		return r
	}

	r.Status = StatusSuccess
	r.Profile = st.Profile
	r.Repos = st.Repos
	if r.Repos == nil {
		r.Repos = []models.Repository{}
	}
	r.Languages = st.Tally
	if r.Languages == nil {
		r.Languages = models.NewLanguageTally()
	}
	pie := chart.NewPie(r.Languages, palette)
	r.Chart = &pie
	return r
}
