package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/dougalf/lolat/internal/httputil"
)

// showChart renders the logged readings as an HTML line chart, oldest on
// the left. It takes the same limit query parameter as /api/readings.
func (s *Server) showChart(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		httputil.NotFound(w, "reading log is disabled")
		return
	}
	limit, err := httputil.QueryInt(r, "limit", DefaultReadingsLimit, MaxReadingsLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	readings, err := s.log.RecentReadings(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}

	n := len(readings)
	times := make([]string, n)
	distance := make([]opts.LineData, n)
	volume := make([]opts.LineData, n)
	for i, rd := range readings {
		j := n - 1 - i
		times[j] = rd.RecordedAt.Format("2006-01-02 15:04")
		distance[j] = opts.LineData{Value: rd.Reading}
		volume[j] = opts.LineData{Value: rd.Volume}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "LolaT readings", Width: "1000px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Liquid level", Subtitle: fmt.Sprintf("last %d readings", n)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(times).
		AddSeries("distance (mm)", distance).
		AddSeries("volume", volume)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Errorf("failed to render chart: %w", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
