// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Plot generation related functionality.

package analysis

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	defaultPlotWidth  = vg.Centimeter * 24
	defaultPlotHeight = vg.Centimeter * 7
)

// ErrNoValues is returned when there is nothing to plot.
var ErrNoValues = errors.New("no values to plot")

// Upper bound for histogram bin count.
const maxHistogramBins = 100

// A custom color palette: color1 as base color and color2 as a darker variant.
var ColorPalette = []color.RGBA{
	// red1
	{R: 230, G: 57, B: 70, A: 255},
	// red2
	{R: 143, G: 35, B: 43, A: 255},
	// green1
	{R: 84, G: 184, B: 50, A: 255},
	// green2
	{R: 50, G: 110, B: 30, A: 255},
	// blue1
	{R: 63, G: 55, B: 201, A: 255},
	// blue2
	{R: 51, G: 45, B: 163, A: 255},
	// purple1
	{R: 86, G: 11, B: 173, A: 255},
	// purple2
	{R: 62, G: 8, B: 125, A: 255},
	// cyan1
	{R: 31, G: 180, B: 206, A: 255},
	// cyan2
	{R: 11, G: 123, B: 143, A: 255},
	// orange1
	{R: 255, G: 174, B: 0, A: 255},
	// orange2
	{R: 173, G: 118, B: 0, A: 255},
}

// Series is a per-frame metric series prepared for plotting.
//
// PSNR and SSIM are both higher-is-better, so the distribution plots point out the low
// tail and the per-frame plot marks the worst frame.
type Series struct {
	Name string
	// Values in frame order.
	Values []float64
	Mean   float64
	// Index of the frame with the lowest value, first one on ties.
	Worst  int
	sorted []float64
}

// NewSeries validates values and precomputes what plots need. Values are copied.
func NewSeries(name string, values []float64) (*Series, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoValues)
	}
	s := &Series{Name: name, Values: make([]float64, len(values))}
	copy(s.Values, values)
	for i, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: values must be finite, frame %d is %v", name, i, v)
		}
		if v < s.Values[s.Worst] {
			s.Worst = i
		}
	}
	s.Mean = stat.Mean(s.Values, nil)
	s.sorted = make([]float64, len(s.Values))
	copy(s.sorted, s.Values)
	sort.Float64s(s.sorted)
	return s, nil
}

// Quantile returns empirical q-quantile of the series.
func (s *Series) Quantile(q float64) float64 {
	return stat.Quantile(q, stat.Empirical, s.sorted, nil)
}

// CDF returns fraction of frames scoring at most v.
func (s *Series) CDF(v float64) float64 {
	n := sort.Search(len(s.sorted), func(i int) bool { return s.sorted[i] > v })
	return float64(n) / float64(len(s.sorted))
}

// Low tail quantiles annotated on the CDF plot.
var cdfQuantiles = []float64{0.01, 0.05, 0.5}

// CreateVqmPlot creates a per-frame plot with the mean line and the worst frame marked.
func CreateVqmPlot(s *Series) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Frame #"
	p.Y.Label.Text = s.Name

	xys := make(plotter.XYs, len(s.Values))
	for i, v := range s.Values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return p, fmt.Errorf("CreateVqmPlot() creating new Line: %w", err)
	}
	line.Color = ColorPalette[0]

	last := float64(len(s.Values) - 1)
	mean, err := segment(0, s.Mean, last, s.Mean)
	if err != nil {
		return p, fmt.Errorf("CreateVqmPlot() mean line: %w", err)
	}
	mean.Color = ColorPalette[6]
	meanLabel, err := annotation(0, s.Mean, fmt.Sprintf("mean=%.3f", s.Mean), 5)
	if err != nil {
		return p, fmt.Errorf("CreateVqmPlot() mean label: %w", err)
	}

	worst := plotter.XY{X: float64(s.Worst), Y: s.Values[s.Worst]}
	marker, err := plotter.NewScatter(plotter.XYs{worst})
	if err != nil {
		return p, fmt.Errorf("CreateVqmPlot() worst frame marker: %w", err)
	}
	marker.GlyphStyle.Color = ColorPalette[1]
	marker.GlyphStyle.Shape = draw.CircleGlyph{}
	marker.GlyphStyle.Radius = vg.Points(3)
	worstLabel, err := annotation(worst.X, worst.Y, fmt.Sprintf("worst #%d=%.3f", s.Worst, worst.Y), -5)
	if err != nil {
		return p, fmt.Errorf("CreateVqmPlot() worst frame label: %w", err)
	}

	p.Add(plotter.NewGrid(), line, mean, meanLabel, marker, worstLabel)
	p.X.Min, p.X.Max = 0, last

	return p, nil
}

// CreateHistogramPlot creates histogram of the series values.
func CreateHistogramPlot(s *Series) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = s.Name
	p.Y.Label.Text = "Frames"

	// Short clips get a bin per frame, long ones are capped.
	bins := len(s.sorted)
	if bins > maxHistogramBins {
		bins = maxHistogramBins
	}
	hist, err := plotter.NewHist(plotter.Values(s.sorted), bins)
	if err != nil {
		return p, fmt.Errorf("CreateHistogramPlot() creating new histogram: %w", err)
	}
	hist.Color = color.Transparent
	hist.FillColor = ColorPalette[7]

	p.Add(plotter.NewGrid(), hist)

	return p, nil
}

// CreateCDFPlot creates empirical Cumulative Distribution Function step plot with low
// tail quantiles and the mean marked.
func CreateCDFPlot(s *Series) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = s.Name
	p.Y.Label.Text = "Fraction of frames"
	p.Y.Min, p.Y.Max = 0, 1

	// A step per frame, i-th smallest value completes fraction (i+1)/n.
	n := float64(len(s.sorted))
	xys := make(plotter.XYs, 0, len(s.sorted)+1)
	xys = append(xys, plotter.XY{X: s.sorted[0], Y: 0})
	for i, v := range s.sorted {
		xys = append(xys, plotter.XY{X: v, Y: float64(i+1) / n})
	}
	cdf, err := plotter.NewLine(xys)
	if err != nil {
		return p, fmt.Errorf("CreateCDFPlot() creating new Line: %w", err)
	}
	cdf.StepStyle = plotter.PostStep
	cdf.Color = ColorPalette[2]
	p.Add(plotter.NewGrid(), cdf)

	type marker struct {
		x     float64
		text  string
		color color.Color
	}
	markers := make([]marker, 0, len(cdfQuantiles)+1)
	for i, q := range cdfQuantiles {
		v := s.Quantile(q)
		markers = append(markers, marker{v, fmt.Sprintf("q(%.2f)=%.3f", q, v), ColorPalette[(i*5)%len(ColorPalette)]})
	}
	markers = append(markers, marker{s.Mean, fmt.Sprintf("mean=%.3f", s.Mean), ColorPalette[len(ColorPalette)-1]})

	for _, m := range markers {
		line, err := segment(m.x, 0, m.x, 1)
		if err != nil {
			return p, fmt.Errorf("CreateCDFPlot() marker line: %w", err)
		}
		line.Color = m.color
		line.LineStyle.Width = vg.Points(1)
		line.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
		label, err := annotation(m.x, s.CDF(m.x), m.text, -5)
		if err != nil {
			return p, fmt.Errorf("CreateCDFPlot() marker label: %w", err)
		}
		p.Add(line, label)
	}

	return p, nil
}

// MultiPlotVqm will create metric multi plot and save it to a PNG file.
//
// Resulting plot stacks the per-frame metric plot, its histogram and CDF on one canvas.
func MultiPlotVqm(values []float64, metric, title, outFile string) (err error) {
	s, err := NewSeries(metric, values)
	if err != nil {
		return fmt.Errorf("MultiPlotVqm() %w", err)
	}

	// gonum's Align wants a rows x cols grid, single column here.
	plots := make([][]*plot.Plot, 3)
	for i, create := range []func(*Series) (*plot.Plot, error){
		CreateVqmPlot, CreateHistogramPlot, CreateCDFPlot,
	} {
		p, err := create(s)
		if err != nil {
			return err
		}
		plots[i] = []*plot.Plot{p}
	}

	// Tweak titles and labels to have better layout and make plots less busy.
	plots[0][0].Title.Text = title + "\n\nPer frame " + metric
	plots[1][0].Title.Text = metric + " Histogram"
	plots[1][0].X.Label.Text = ""
	plots[2][0].Title.Text = "Cumulative Distribution Function (CDF)"

	img := vgimg.New(defaultPlotWidth, defaultPlotHeight*vg.Length(len(plots)))
	canvases := plot.Align(plots, draw.Tiles{Rows: len(plots), Cols: 1, PadY: vg.Points(10)}, draw.New(img))
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	w, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("MultiPlotVqm() error from os.Create(): %w", err)
	}
	defer w.Close()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		return fmt.Errorf("MultiPlotVqm() failed writing png file: %w", err)
	}

	return nil
}

// segment creates a straight line between two points.
func segment(x0, y0, x1, y1 float64) (*plotter.Line, error) {
	return plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y1}})
}

// annotation creates a text label next to a point, dy shifts it vertically.
func annotation(x, y float64, text string, dy vg.Length) (*plotter.Labels, error) {
	l, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: x, Y: y}},
		Labels: []string{text},
	})
	if err != nil {
		return nil, err
	}
	l.Offset.X = 5
	l.Offset.Y = dy
	return l, nil
}
