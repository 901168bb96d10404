package chart

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"
)

// pie draws proportional wedges starting at twelve o'clock with a legend on the right.
func (c *canvas) pie(spec Spec) {
	dc := c.dc
	var total float64
	for _, v := range spec.Values {
		total += v.Value
	}

	legendWidth := c.w * 0.32
	plotW := c.w - legendWidth
	plotH := c.h - titleHeight
	cx := plotW / 2
	cy := titleHeight + plotH/2
	radius := math.Min(plotW, plotH) * 0.42

	angle := -math.Pi / 2
	for i, v := range spec.Values {
		sweep := v.Value / total * 2 * math.Pi
		if sweep <= 0 {
			continue
		}
		dc.SetHexColor(c.color(i))
		dc.MoveTo(cx, cy)
		dc.DrawArc(cx, cy, radius, angle, angle+sweep)
		dc.ClosePath()
		dc.FillPreserve()
		dc.SetRGB(1, 1, 1)
		dc.SetLineWidth(2)
		dc.Stroke()

		pct := v.Value / total * 100
		// labels on slivers overlap their neighbours
		if pct >= 3 {
			mid := angle + sweep/2
			lx := cx + math.Cos(mid)*radius*0.65
			ly := cy + math.Sin(mid)*radius*0.65
			dc.SetFontFace(c.strong)
			dc.SetRGB(1, 1, 1)
			dc.DrawStringAnchored(fmt.Sprintf("%.1f%%", pct), lx, ly, 0.5, 0.5)
		}
		angle += sweep
	}

	const swatch = 16.0
	lineH := 28.0
	lx := plotW + 10
	ly := cy - lineH*float64(len(spec.Values))/2
	dc.SetFontFace(c.label)
	for i, v := range spec.Values {
		y := ly + lineH*float64(i)
		dc.SetHexColor(c.color(i))
		dc.DrawRectangle(lx, y, swatch, swatch)
		dc.Fill()
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.DrawStringAnchored(truncate(v.Label, 32), lx+swatch+8, y+swatch/2, 0, 0.5)
	}
}

// bar draws vertical bars against a 0..max value axis labelled with the spec unit.
func (c *canvas) bar(spec Spec) {
	dc := c.dc
	const (
		left   = 90.0
		right  = 40.0
		bottom = 140.0
		ticks  = 5
	)
	top := titleHeight + 20
	plotW := c.w - left - right
	plotH := c.h - top - bottom
	baseY := top + plotH

	var maxV float64
	for _, v := range spec.Values {
		maxV = math.Max(maxV, v.Value)
	}
	axisMax := niceCeil(maxV)

	dc.SetFontFace(c.small)
	dc.SetLineWidth(1)
	for i := 0; i <= ticks; i++ {
		val := axisMax * float64(i) / ticks
		y := baseY - val/axisMax*plotH
		dc.SetRGB(0.88, 0.88, 0.88)
		dc.DrawLine(left, y, left+plotW, y)
		dc.Stroke()
		dc.SetRGB(0.3, 0.3, 0.3)
		dc.DrawStringAnchored(formatNumber(val), left-8, y, 1, 0.5)
	}

	slot := plotW / float64(len(spec.Values))
	barW := slot * 0.6
	for i, v := range spec.Values {
		x := left + slot*float64(i) + (slot-barW)/2
		bh := v.Value / axisMax * plotH
		dc.SetHexColor(c.color(i))
		dc.DrawRectangle(x, baseY-bh, barW, bh)
		dc.Fill()

		dc.SetFontFace(c.strong)
		dc.SetRGB(0.15, 0.15, 0.15)
		dc.DrawStringAnchored(formatNumber(v.Value), x+barW/2, baseY-bh-6, 0.5, 0)

		tx := x + barW/2
		ty := baseY + 12
		dc.SetFontFace(c.label)
		dc.Push()
		dc.RotateAbout(gg.Radians(-30), tx, ty)
		dc.DrawStringAnchored(truncate(v.Label, 28), tx, ty, 1, 1)
		dc.Pop()
	}

	dc.SetRGB(0.2, 0.2, 0.2)
	dc.SetLineWidth(1.5)
	dc.DrawLine(left, top, left, baseY)
	dc.DrawLine(left, baseY, left+plotW, baseY)
	dc.Stroke()

	if spec.Unit != "" {
		ux, uy := 24.0, top+plotH/2
		dc.SetFontFace(c.label)
		dc.Push()
		dc.RotateAbout(gg.Radians(-90), ux, uy)
		dc.DrawStringAnchored(spec.Unit, ux, uy, 0.5, 0.5)
		dc.Pop()
	}
}

// timeline lays milestones out left to right; position is ordinal only.
func (c *canvas) timeline(spec Spec) {
	dc := c.dc
	const margin = 90.0
	n := len(spec.Milestones)
	lineY := titleHeight + (c.h-titleHeight)*0.38

	xs := make([]float64, n)
	if n == 1 {
		xs[0] = c.w / 2
	} else {
		step := (c.w - 2*margin) / float64(n-1)
		for i := range xs {
			xs[i] = margin + step*float64(i)
		}
	}

	if n > 1 {
		dc.SetRGB(0.55, 0.55, 0.55)
		dc.SetLineWidth(3)
		dc.DrawLine(xs[0], lineY, xs[n-1], lineY)
		dc.Stroke()
	}

	for i, m := range spec.Milestones {
		x := xs[i]
		dc.SetHexColor(c.color(i))
		dc.DrawCircle(x, lineY, 9)
		dc.FillPreserve()
		dc.SetRGB(1, 1, 1)
		dc.SetLineWidth(2)
		dc.Stroke()

		dc.SetFontFace(c.strong)
		dc.SetRGB(0.15, 0.15, 0.15)
		dc.DrawStringAnchored(truncate(m.Date, 20), x, lineY-22, 0.5, 0)

		ty := lineY + 24
		dc.SetFontFace(c.label)
		dc.SetRGB(0.25, 0.25, 0.25)
		dc.Push()
		dc.RotateAbout(gg.Radians(25), x, ty)
		dc.DrawStringAnchored(truncate(m.Label, 36), x-4, ty, 0, 0.5)
		dc.Pop()
	}
}

// niceCeil rounds v up to 1, 2, 2.5 or 5 times a power of ten.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(v)))
	for _, step := range []float64{1, 2, 2.5, 5, 10} {
		if step*mag >= v {
			return step * mag
		}
	}
	return 10 * mag
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
