package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tagpose/internal/db"
	"github.com/banshee-data/tagpose/internal/httputil"
	"github.com/banshee-data/tagpose/internal/units"
)

// maxChartPoints bounds the rows pulled for one chart.
const maxChartPoints = 5000

// handleDistanceChart renders an HTML line chart of each tag's distance
// from the reference tag against frame number.
// Query params:
//   - session (optional; defaults to the running session)
//   - limit (optional; default and max 5000 rows)
func (ws *WebServer) handleDistanceChart(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	session, ok := ws.sessionParam(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit", maxChartPoints)
	if err != nil || limit <= 0 || limit > maxChartPoints {
		httputil.BadRequest(w, fmt.Sprintf("limit must be between 1 and %d", maxChartPoints))
		return
	}

	rows, err := ws.db.Observations(session, db.AllTags, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := renderDistanceChart(&buf, session, rows, ws.units); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// renderDistanceChart writes one series per tag, in order of first
// appearance.
func renderDistanceChart(w io.Writer, session string, rows []db.ObservationRow, unit string) error {
	series := map[int][]opts.LineData{}
	var order []int
	for _, row := range rows {
		if _, seen := series[row.TagID]; !seen {
			order = append(order, row.TagID)
		}
		series[row.TagID] = append(series[row.TagID], opts.LineData{
			Value: []interface{}{row.FrameSeq, units.ConvertLength(row.Distance, unit)},
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tag distances", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Distance from reference tag", Subtitle: fmt.Sprintf("session=%s rows=%d", session, len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: fmt.Sprintf("distance (%s)", unit)}),
	)
	for _, id := range order {
		line.AddSeries(fmt.Sprintf("tag %d", id), series[id], charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line.Render(w)
}
