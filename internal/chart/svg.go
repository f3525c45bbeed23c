package chart

import (
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"strings"
	"text/template"
)

const (
	defaultWidth  = 480
	legendColumns = 3
	legendRowH    = 22
	legendTop     = 16
	pieMargin     = 16
)

//go:embed templates/pie.svg.tmpl
var pieTemplate string

var pieTmpl = template.Must(
	template.New("pie").
		Funcs(template.FuncMap{
			"xml": xmlEscape,
		}).
		Parse(pieTemplate),
)

type Options struct {
	// Width of the SVG canvas in pixels; the height follows from the legend.
	Width int
	// Title is used as the accessible name of the chart.
	Title string
}

type legendItem struct {
	X, Y  int
	Color string
	Label string
}

type sliceShape struct {
	Path    string
	Color   string
	Tooltip string
}

type pieViewModel struct {
	Width, Height int
	Title         string
	CX, CY, R     float64
	Legend        []legendItem
	Slices        []sliceShape
	Empty         bool
}

// RenderSVG renders the pie with its legend above it.
func RenderSVG(p Pie, opts Options) ([]byte, error) {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	title := opts.Title
	if title == "" {
		title = "Languages"
	}

	colW := width / legendColumns
	rows := (len(p.Slices) + legendColumns - 1) / legendColumns
	legendH := legendTop + rows*legendRowH
	r := float64(width)/2 - pieMargin
	height := legendH + pieMargin + int(2*r) + pieMargin

	vm := pieViewModel{
		Width:  width,
		Height: height,
		Title:  title,
		CX:     float64(width) / 2,
		CY:     float64(legendH+pieMargin) + r,
		R:      r,
		Empty:  p.Empty(),
	}
	for i, s := range p.Slices {
		vm.Legend = append(vm.Legend, legendItem{
			X:     (i%legendColumns)*colW + pieMargin,
			Y:     legendTop + (i/legendColumns)*legendRowH,
			Color: s.Color,
			Label: fmt.Sprintf("%s (%s)", s.Label, s.Percent()),
		})
		if path := s.Path(vm.CX, vm.CY, vm.R); path != "" {
			vm.Slices = append(vm.Slices, sliceShape{
				Path:    path,
				Color:   s.Color,
				Tooltip: fmt.Sprintf("%s: %d bytes", s.Label, s.Value),
			})
		}
	}

	var buf bytes.Buffer
	if err := pieTmpl.Execute(&buf, vm); err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
