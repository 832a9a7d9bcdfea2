package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"ammonia-battery/internal/model"
)

var (
	chargeColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	dischargeColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	priceColor     = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	levelColor     = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

const (
	figureWidth  = 15 * vg.Inch
	figureHeight = 10 * vg.Inch
	timeFormat   = "01-02\n15:04"
)

// Figure stacks three panels over a shared time axis: charge and discharge
// power, price, and storage level.
func Figure(s *model.Schedule, title string) ([][]*plot.Plot, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("no schedule to plot")
	}
	periods := s.Periods()
	n := len(periods)

	charge := make(plotter.XYs, n)
	discharge := make(plotter.XYs, n)
	price := make(plotter.XYs, n)
	level := make(plotter.XYs, n+1)
	level[0] = plotter.XY{X: float64(periods[0].Start.Unix()), Y: s.InitialLevel()}
	var maxPower, maxLevel float64
	for i, p := range periods {
		x := float64(p.Start.Unix())
		charge[i] = plotter.XY{X: x, Y: p.ChargeMW}
		discharge[i] = plotter.XY{X: x, Y: p.DischargeMW}
		price[i] = plotter.XY{X: x, Y: p.Price}
		level[i+1] = plotter.XY{X: float64(p.End.Unix()), Y: p.LevelEnd}
		maxPower = max(maxPower, p.ChargeMW, p.DischargeMW)
		maxLevel = max(maxLevel, p.LevelEnd)
	}
	maxLevel = max(maxLevel, s.InitialLevel())

	power, err := panel(title+": power flow", "Power (MW)",
		trace{"Charging (MW)", charge, chargeColor},
		trace{"Discharging (MW)", discharge, dischargeColor},
	)
	if err != nil {
		return nil, err
	}
	floorAt(power, maxPower)

	prices, err := panel("Electricity price", "Price (£/MWh)",
		trace{"Price (£/MWh)", price, priceColor},
	)
	if err != nil {
		return nil, err
	}

	storage, err := panel("Storage level", "Level ("+s.StorageUnit()+")",
		trace{"Level (" + s.StorageUnit() + ")", level, levelColor},
	)
	if err != nil {
		return nil, err
	}
	floorAt(storage, maxLevel)

	return [][]*plot.Plot{{power}, {prices}, {storage}}, nil
}

type trace struct {
	label string
	xys   plotter.XYs
	color color.Color
}

func panel(title, ylabel string, lines ...trace) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: timeFormat}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	for _, s := range lines {
		l, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.label, err)
		}
		l.Color = s.color
		l.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(s.label, l)
	}
	return p, nil
}

// floorAt pins the axis to zero with a tenth of headroom above the peak.
func floorAt(p *plot.Plot, peak float64) {
	p.Y.Min = 0
	if peak > 0 {
		p.Y.Max = peak * 1.1
	} else {
		p.Y.Max = 1
	}
}

// WritePlot renders the figure as PNG.
func WritePlot(w io.Writer, s *model.Schedule, title string) error {
	plots, err := Figure(s, title)
	if err != nil {
		return err
	}
	img := vgimg.New(figureWidth, figureHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      4 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  4 * vg.Millimeter,
	}
	canvases := plot.Align(plots, tiles, dc)
	for j := range plots {
		plots[j][0].Draw(canvases[j][0])
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
