package dashboard

import (
	"strings"

	"github.com/shopspring/decimal"
)

// SeriesPoint is one x position of a line series. A nil Value is a gap.
type SeriesPoint struct {
	Date  string
	Value *float64
}

// SplitSeries turns chart points into two date-aligned series. A null on one
// side stays a gap on that series; it is never drawn as zero.
func SplitSeries(points []ChartPoint) (historical, forecast []SeriesPoint) {
	historical = make([]SeriesPoint, 0, len(points))
	forecast = make([]SeriesPoint, 0, len(points))
	for _, p := range points {
		historical = append(historical, SeriesPoint{Date: p.Date, Value: p.Historical})
		forecast = append(forecast, SeriesPoint{Date: p.Date, Value: p.Forecast})
	}
	return historical, forecast
}

// FormatUSD renders v as "$1,234.56".
func FormatUSD(v float64) string {
	fixed := decimal.NewFromFloat(v).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if v < 0 && fixed != "0.00" {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
