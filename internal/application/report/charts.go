package report

import (
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
)

// PieSlice is one share of a pie chart. Value is a percentage.
type PieSlice struct {
	Label string
	Value float64
	Color string
}

// PieArc is the drawable geometry of one slice.
type PieArc struct {
	Label    string
	Color    string
	Percent  float64
	Start    float64 // degrees, clockwise from 3 o'clock
	End      float64
	LargeArc bool
	Path     string
}

// PieArcs lays slices out clockwise from 0 degrees on a circle of the
// given diameter.
// POST: for slices summing to 100 the sweeps sum to 360; LargeArc iff Value > 50
func PieArcs(slices []PieSlice, size float64) []PieArc {
	r := size / 2
	arcs := make([]PieArc, 0, len(slices))
	cumulative := 0.0
	for _, s := range slices {
		start := cumulative / 100 * 360
		cumulative += s.Value
		end := cumulative / 100 * 360
		arc := PieArc{
			Label:    s.Label,
			Color:    s.Color,
			Percent:  s.Value,
			Start:    start,
			End:      end,
			LargeArc: s.Value > 50,
		}
		if s.Value >= 100 {
			// A single full slice has coincident end points; draw a circle.
			arc.Path = fmt.Sprintf("M%s,%s m-%s,0 a%s,%s 0 1,0 %s,0 a%s,%s 0 1,0 -%s,0",
				num(r), num(r), num(r), num(r), num(r), num(2*r), num(r), num(r), num(2*r))
		} else {
			x1, y1 := polar(r, r, r, start*math.Pi/180)
			x2, y2 := polar(r, r, r, end*math.Pi/180)
			flag := 0
			if arc.LargeArc {
				flag = 1
			}
			arc.Path = fmt.Sprintf("M%s,%s L%s,%s A%s,%s 0 %d,1 %s,%s Z",
				num(r), num(r), num(x1), num(y1), num(r), num(r), flag, num(x2), num(y2))
		}
		arcs = append(arcs, arc)
	}
	return arcs
}

// Sweep returns the arc's angular size in degrees.
func (a PieArc) Sweep() float64 { return a.End - a.Start }

// PieSVG renders the arcs as an inline SVG element.
func PieSVG(arcs []PieArc, size float64) template.HTML {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg class="pie" width="%s" height="%s" viewBox="0 0 %s %s" role="img">`, num(size), num(size), num(size), num(size))
	for _, a := range arcs {
		fmt.Fprintf(&b, `<path d="%s" fill="%s"><title>%s</title></path>`,
			template.HTMLEscapeString(a.Path), template.HTMLEscapeString(a.Color), template.HTMLEscapeString(a.Label))
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

// RadarAxis is one spoke of a radar chart; Value is on a 0-100 scale.
type RadarAxis struct {
	Label string
	Value float64
}

// Point is an SVG coordinate.
type Point struct {
	X, Y float64
}

// RadarSpoke is the geometry of one axis.
type RadarSpoke struct {
	Label string
	End   Point // outer end of the axis line
	Text  Point // label anchor
	Value Point // projected data point
}

// Radar is the drawable geometry of a radar chart.
type Radar struct {
	Size   float64 // full SVG width and height, including label margin
	Center float64
	Radius float64
	Rings  []float64
	Spokes []RadarSpoke
}

// Radar layout constants.
const (
	RadarRings       = 4
	RadarLabelOffset = 20
	RadarMargin      = 60
	RadarMarker      = 3
)

// NewRadar lays out axes evenly from 12 o'clock. Values outside 0-100 are
// clamped and non-finite values read as 0.
// PRE: size > 0
func NewRadar(axes []RadarAxis, size float64) Radar {
	radius := size / 3
	total := size + RadarMargin
	c := total / 2
	rd := Radar{Size: total, Center: c, Radius: radius}
	for i := 1; i <= RadarRings; i++ {
		rd.Rings = append(rd.Rings, radius*float64(i)/RadarRings)
	}
	if len(axes) == 0 {
		return rd
	}
	slice := 2 * math.Pi / float64(len(axes))
	for i, a := range axes {
		angle := slice*float64(i) - math.Pi/2
		v := a.Value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		ex, ey := polar(c, c, radius, angle)
		tx, ty := polar(c, c, radius+RadarLabelOffset, angle)
		vx, vy := polar(c, c, v/100*radius, angle)
		rd.Spokes = append(rd.Spokes, RadarSpoke{
			Label: a.Label,
			End:   Point{ex, ey},
			Text:  Point{tx, ty},
			Value: Point{vx, vy},
		})
	}
	return rd
}

// Polygon returns the closed data shape path.
func (rd Radar) Polygon() string {
	if len(rd.Spokes) == 0 {
		return ""
	}
	pts := make([]string, len(rd.Spokes))
	for i, s := range rd.Spokes {
		pts[i] = num(s.Value.X) + "," + num(s.Value.Y)
	}
	return "M" + strings.Join(pts, " L") + " Z"
}

// SVG renders the chart as an inline SVG element.
func (rd Radar) SVG() template.HTML {
	var b strings.Builder
	c := num(rd.Center)
	fmt.Fprintf(&b, `<svg class="radar" width="%s" height="%s" viewBox="0 0 %s %s" role="img">`, num(rd.Size), num(rd.Size), num(rd.Size), num(rd.Size))
	for _, r := range rd.Rings {
		fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="%s" fill="none" stroke="#e2e8f0" stroke-width="0.5"/>`, c, c, num(r))
	}
	for _, s := range rd.Spokes {
		fmt.Fprintf(&b, `<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="#e2e8f0" stroke-width="0.5"/>`, c, c, num(s.End.X), num(s.End.Y))
		fmt.Fprintf(&b, `<text x="%s" y="%s" text-anchor="middle" dominant-baseline="central" font-size="9" font-weight="bold" fill="#64748b">%s</text>`,
			num(s.Text.X), num(s.Text.Y), template.HTMLEscapeString(s.Label))
	}
	if p := rd.Polygon(); p != "" {
		fmt.Fprintf(&b, `<path d="%s" fill="rgba(31,111,235,0.3)" stroke="#1f6feb" stroke-width="2"/>`, p)
	}
	for _, s := range rd.Spokes {
		fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="%d" fill="#1f6feb"/>`, num(s.Value.X), num(s.Value.Y), RadarMarker)
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

func polar(cx, cy, r, angle float64) (float64, float64) {
	return cx + r*math.Cos(angle), cy + r*math.Sin(angle)
}

// num prints a coordinate with at most two decimals.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}
