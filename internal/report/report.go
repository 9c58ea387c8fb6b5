// Package report renders model quality over time as a standalone HTML
// page: one line chart per evaluation metric, across every version stored
// in the registry for a (task, restaurant) slot.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rs/zerolog"

	"github.com/resto-data/covers.report/internal/registry"
)

// MetadataSource is the slice of the registry the reporter needs.
// Satisfied by *registry.Registry.
type MetadataSource interface {
	ListVersions(task string, restaurantID int64) ([]string, error)
	LoadMetadata(task string, restaurantID int64, version string) (*registry.Metadata, error)
}

// VersionMetrics is one version's evaluation results, in training order.
type VersionMetrics struct {
	Version string
	Metrics map[string]float64
}

// Reporter builds metric-history reports from registry metadata.
type Reporter struct {
	source MetadataSource
	log    zerolog.Logger
}

func New(source MetadataSource, log zerolog.Logger) *Reporter {
	return &Reporter{source: source, log: log}
}

// History returns every stored version's metrics, oldest first.
func (r *Reporter) History(task string, restaurantID int64) ([]VersionMetrics, error) {
	versions, err := r.source.ListVersions(task, restaurantID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, &registry.ModelNotFoundError{Task: task, RestaurantID: restaurantID}
	}

	// ListVersions is newest first; charts read left to right.
	out := make([]VersionMetrics, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		meta, err := r.source.LoadMetadata(task, restaurantID, versions[i])
		if err != nil {
			return nil, err
		}
		out = append(out, VersionMetrics{Version: versions[i], Metrics: meta.Metrics})
	}
	return out, nil
}

// WriteHTML renders the metric-history page to w.
func (r *Reporter) WriteHTML(w io.Writer, task string, restaurantID int64) error {
	history, err := r.History(task, restaurantID)
	if err != nil {
		return err
	}

	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("%s model history - restaurant %d", task, restaurantID))

	for _, metric := range metricNames(history) {
		page.AddCharts(metricChart(task, restaurantID, metric, history))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	r.log.Info().
		Str("task", task).
		Int64("restaurant_id", restaurantID).
		Int("versions", len(history)).
		Msg("rendered model history report")
	return nil
}

// Generate renders the report into a file at path.
func (r *Reporter) Generate(path, task string, restaurantID int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()
	return r.WriteHTML(f, task, restaurantID)
}

// metricNames is the sorted union of metric keys across versions.
func metricNames(history []VersionMetrics) []string {
	seen := make(map[string]bool)
	for _, v := range history {
		for name := range v.Metrics {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func metricChart(task string, restaurantID int64, metric string, history []VersionMetrics) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    metric,
			Subtitle: fmt.Sprintf("task=%s restaurant=%d versions=%d", task, restaurantID, len(history)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "version"}),
		charts.WithYAxisOpts(opts.YAxis{Name: metric}),
	)

	labels := make([]string, len(history))
	points := make([]opts.LineData, len(history))
	for i, v := range history {
		labels[i] = v.Version
		value, ok := v.Metrics[metric]
		if !ok {
			points[i] = opts.LineData{Value: nil}
			continue
		}
		points[i] = opts.LineData{Value: value}
	}

	line.SetXAxis(labels)
	line.AddSeries(metric, points, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	return line
}
