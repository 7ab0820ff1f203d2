// Package chart renders diagnostic plots with gonum/plot
package chart

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/linuxmatters/squelch/internal/audio"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Plot geometry and labels
const (
	Width  = 10 * vg.Inch
	Height = 6 * vg.Inch
	DPI    = 100

	XLabel = "Time Frame"
	YLabel = "Mean Power"
)

// lineColour is the series colour (matplotlib's default blue)
var lineColour = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}

// RenderPowerSeries draws mean power against frame index and writes a JPEG
// to path. The file is replaced atomically. An empty series renders empty axes.
func RenderPowerSeries(series []float64, path, title string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = XLabel
	p.Y.Label.Text = YLabel
	p.Add(plotter.NewGrid())

	if len(series) > 0 {
		line, err := plotter.NewLine(powerXYs(series))
		if err != nil {
			return fmt.Errorf("building power line: %w", err)
		}
		line.LineStyle.Color = lineColour
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)
	} else {
		p.X.Min, p.X.Max = 0, 1
		p.Y.Min, p.Y.Max = 0, 1
	}

	canvas := vgimg.NewWith(
		vgimg.UseWH(Width, Height),
		vgimg.UseDPI(DPI),
		vgimg.UseBackgroundColor(color.White),
	)
	p.Draw(draw.New(canvas))

	tmp, err := audio.CreateTemp(path)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(tmp)
	if _, err := (vgimg.JpegCanvas{Canvas: canvas}).WriteTo(bw); err != nil {
		discard(tmp)
		return fmt.Errorf("%w: failed to encode plot: %v", audio.ErrIO, err)
	}
	if err := bw.Flush(); err != nil {
		discard(tmp)
		return fmt.Errorf("%w: failed to write plot: %v", audio.ErrIO, err)
	}

	return audio.CommitTemp(tmp, path)
}

// powerXYs maps a power series to (frame index, power) points. Non-finite
// values are clamped to zero since plotter rejects them.
func powerXYs(series []float64) plotter.XYs {
	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i].X = float64(i)
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			pts[i].Y = v
		}
	}
	return pts
}

func discard(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}
