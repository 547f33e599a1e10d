package dashboard

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/linefollow/internal/httputil"
	"github.com/banshee-data/linefollow/internal/linetrack"
	"github.com/banshee-data/linefollow/internal/telemetry"
)

// handleReflectanceChart plots every processed form of the difference
// channel over the selected frames.
func (s *Server) handleReflectanceChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	frames, label, status, err := s.frames(r, defaultFrameCount)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}

	x := make([]string, len(frames))
	raw := make([]opts.LineData, len(frames))
	mean := make([]opts.LineData, len(frames))
	median := make([]opts.LineData, len(frames))
	filtered := make([]opts.LineData, len(frames))
	for i, f := range frames {
		x[i] = strconv.FormatUint(f.Tick, 10)
		raw[i] = opts.LineData{Value: f.Difference.Raw}
		mean[i] = opts.LineData{Value: f.Difference.Mean}
		median[i] = opts.LineData{Value: f.Difference.Median}
		filtered[i] = opts.LineData{Value: f.Difference.Filtered}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Reflectance", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Reflectance (Δ)", Subtitle: fmt.Sprintf("%s frames=%d", label, len(frames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "V"}),
	)
	line.SetXAxis(x).
		AddSeries("raw", raw).
		AddSeries("mean", mean).
		AddSeries("median", median).
		AddSeries("ema", filtered)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePathChart renders the odometer track as a scatter, with drifted
// ticks in their own series.
func (s *Server) handlePathChart(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	frames, label, status, err := s.frames(r, defaultFrameCount)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}

	var onLine, drifted []opts.ScatterData
	maxAbs := 0.0
	for _, f := range frames {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(f.Pose.X), math.Abs(f.Pose.Y)))
		pt := opts.ScatterData{Value: []interface{}{f.Pose.X, f.Pose.Y, f.Tick}}
		if f.Mistake == linetrack.MistakeNone {
			onLine = append(onLine, pt)
		} else {
			drifted = append(drifted, pt)
		}
	}
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Odometer Path", Width: "800px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "Odometer Path", Subtitle: fmt.Sprintf("%s frames=%d", label, len(frames))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (in)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (in)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("on line", onLine, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	scatter.AddSeries("drifted", drifted, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 7}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render path chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePathPNG(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	frames, _, status, err := s.frames(r, defaultFrameCount)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := WritePathPNG(frames, &buf); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// WritePathPNG draws the odometer path of frames as a PNG, marking ticks
// where the robot had drifted off the line.
func WritePathPNG(frames []telemetry.Frame, w io.Writer) error {
	p := plot.New()
	p.Title.Text = "Odometer path"
	p.X.Label.Text = "X (in)"
	p.Y.Label.Text = "Y (in)"
	p.Add(plotter.NewGrid())

	path := make(plotter.XYs, len(frames))
	var drifted plotter.XYs
	for i, f := range frames {
		path[i].X = f.Pose.X
		path[i].Y = f.Pose.Y
		if f.Mistake != linetrack.MistakeNone {
			drifted = append(drifted, plotter.XY{X: f.Pose.X, Y: f.Pose.Y})
		}
	}

	if len(path) > 0 {
		line, err := plotter.NewLine(path)
		if err != nil {
			return fmt.Errorf("path line: %w", err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
		p.Legend.Add("path", line)
	}
	if len(drifted) > 0 {
		pts, err := plotter.NewScatter(drifted)
		if err != nil {
			return fmt.Errorf("drift points: %w", err)
		}
		pts.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		pts.Radius = vg.Points(2)
		p.Add(pts)
		p.Legend.Add("drifted", pts)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render path plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write path plot: %w", err)
	}
	return nil
}
