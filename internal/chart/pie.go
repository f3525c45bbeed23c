// Package chart turns a language tally into pie chart geometry and SVG.
package chart

import (
	"fmt"
	"math"

	"ghanalyzer/internal/data/models"
)

// DefaultPalette cycles when there are more languages than colours.
var DefaultPalette = []string{"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0", "#9966FF", "#FF9F40"}

// Slice angles are in radians, clockwise from twelve o'clock.
type Slice struct {
	Label      string  `json:"label"`
	Value      int64   `json:"value"`
	Fraction   float64 `json:"fraction"`
	Color      string  `json:"color"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
}

type Pie struct {
	Slices []Slice `json:"slices"`
	Total  int64   `json:"total"`
}

// NewPie builds one slice per tally language, in tally order. A tally whose
// total is zero yields no slices.
func NewPie(tally *models.LanguageTally, palette []string) Pie {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	total := tally.Total()
	if total <= 0 {
		return Pie{}
	}

	langs := tally.Languages()
	pie := Pie{Slices: make([]Slice, 0, len(langs)), Total: total}
	angle := 0.0
	for i, lang := range langs {
		v := tally.Bytes(lang)
		frac := float64(v) / float64(total)
		end := angle + frac*2*math.Pi
		if i == len(langs)-1 {
			end = 2 * math.Pi
		}
		pie.Slices = append(pie.Slices, Slice{
			Label:      lang,
			Value:      v,
			Fraction:   frac,
			Color:      palette[i%len(palette)],
			StartAngle: angle,
			EndAngle:   end,
		})
		angle = end
	}
	return pie
}

func (p Pie) Empty() bool {
	return len(p.Slices) == 0
}

// Percent formats the slice share with one decimal.
func (s Slice) Percent() string {
	return fmt.Sprintf("%.1f%%", s.Fraction*100)
}

// Path returns the SVG path of the slice for a pie centred at (cx, cy).
// Zero-sized slices have no path; a slice covering the whole pie is drawn as
// two half arcs since a single arc cannot start and end at the same point.
func (s Slice) Path(cx, cy, r float64) string {
	sweep := s.EndAngle - s.StartAngle
	if s.Value <= 0 || sweep <= 0 {
		return ""
	}
	if sweep >= 2*math.Pi-1e-9 {
		return fmt.Sprintf("M %.2f %.2f A %.2f %.2f 0 1 1 %.2f %.2f A %.2f %.2f 0 1 1 %.2f %.2f Z",
			cx-r, cy, r, r, cx+r, cy, r, r, cx-r, cy)
	}

	x0, y0 := point(cx, cy, r, s.StartAngle)
	x1, y1 := point(cx, cy, r, s.EndAngle)
	large := 0
	if sweep > math.Pi {
		large = 1
	}
	return fmt.Sprintf("M %.2f %.2f L %.2f %.2f A %.2f %.2f 0 %d 1 %.2f %.2f Z",
		cx, cy, x0, y0, r, r, large, x1, y1)
}

func point(cx, cy, r, angle float64) (float64, float64) {
	return cx + r*math.Sin(angle), cy - r*math.Cos(angle)
}
