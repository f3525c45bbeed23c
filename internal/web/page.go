package web

import (
	_ "embed"
	"html/template"
	"math"
	"time"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/biolink"
	"ghanalyzer/internal/chart"
	"ghanalyzer/internal/data/models"
)

//go:embed templates/page.html.tmpl
var pageTemplate string

var pageTmpl = template.Must(template.New("page").Parse(pageTemplate))

type profileView struct {
	Login       string
	Name        string
	AvatarURL   string
	HTMLURL     string
	HasBio      bool
	Bio         []biolink.Segment
	Followers   int
	Following   int
	PublicRepos int
}

type pageData struct {
	Username       string
	RefreshSeconds int

	Loading bool
	Failed  bool
	Success bool
	Message string

	Profile      *profileView
	Repos        []models.Repository
	HasLanguages bool
	Chart        template.HTML
}

func newPageData(st analyzer.State, palette []string, refresh time.Duration) (pageData, error) {
	data := pageData{
		Username:       st.Username,
		RefreshSeconds: int(math.Max(1, math.Round(refresh.Seconds()))),
		Loading:        st.Phase == analyzer.PhaseLoading,
		Failed:         st.Phase == analyzer.PhaseFailed,
		Success:        st.Phase == analyzer.PhaseSuccess,
		Message:        st.Message,
	}
	if !data.Success {
		return data, nil
	}

	if p := st.Profile; p != nil {
		data.Profile = &profileView{
			Login:       p.Login,
			Name:        p.DisplayName(),
			AvatarURL:   p.AvatarURL,
			HTMLURL:     p.HTMLURL,
			HasBio:      biolink.HasBio(p.Bio),
			Bio:         biolink.Render(p.Bio),
			Followers:   p.Followers,
			Following:   p.Following,
			PublicRepos: p.PublicRepos,
		}
	}
	data.Repos = st.Repos

	pie := chart.NewPie(st.Tally, palette)
	data.HasLanguages = !pie.Empty()
	if data.HasLanguages {
		svg, err := chart.RenderSVG(pie, chart.Options{Title: "Languages used by " + st.Username})
		if err != nil {
			return pageData{}, err
		}
		// RenderSVG escapes every label it writes.
		data.Chart = template.HTML(svg)
	}
	return data, nil
}
