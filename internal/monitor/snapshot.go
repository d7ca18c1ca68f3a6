package monitor

import (
	"fmt"
	"image/color"
	"net/http"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/tagpose/internal/httputil"
	"github.com/banshee-data/tagpose/internal/pipeline"
	"github.com/banshee-data/tagpose/internal/security"
	"github.com/banshee-data/tagpose/internal/units"
)

// handleSnapshot renders the latest frame's relative positions to a PNG in
// the snapshot directory and returns its path.
func (ws *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.snapshotDir == "" {
		httputil.ServiceUnavailable(w, "snapshots disabled")
		return
	}
	report, ok := ws.latest.Get()
	if !ok {
		httputil.NotFound(w, "no frame processed yet")
		return
	}

	name := security.SanitizeFilename(fmt.Sprintf("snapshot-%06d-%d.png", report.Seq, ws.clock.Now().Unix()))
	path := filepath.Join(ws.snapshotDir, name)
	if err := security.ValidatePathWithinDirectory(path, ws.snapshotDir); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err := SavePositionPlot(path, report, ws.units); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"path":         path,
		"seq":          report.Seq,
		"observations": len(report.Result.Observations),
	})
}

// SavePositionPlot draws a top-down view of the reference tag's plane: the
// reference at the origin and every plausible tag at its (x, y) position.
func SavePositionPlot(path string, report pipeline.FrameReport, unit string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("frame %d", report.Seq)
	if !report.Result.HasReference() {
		p.Title.Text += " (no reference)"
	}
	p.X.Label.Text = fmt.Sprintf("x (%s)", unit)
	p.Y.Label.Text = fmt.Sprintf("y (%s)", unit)
	p.Add(plotter.NewGrid())

	ref, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return fmt.Errorf("failed to plot reference: %w", err)
	}
	ref.GlyphStyle.Shape = draw.BoxGlyph{}
	ref.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
	ref.GlyphStyle.Radius = vg.Points(5)
	p.Add(ref)
	p.Legend.Add("reference", ref)

	var pts plotter.XYs
	var labels []string
	for _, o := range report.Result.Observations {
		if !o.Plausible(0) {
			continue
		}
		pts = append(pts, plotter.XY{
			X: units.ConvertLength(o.Position.X, unit),
			Y: units.ConvertLength(o.Position.Y, unit),
		})
		labels = append(labels, fmt.Sprintf("%d", o.ID))
	}
	if len(pts) > 0 {
		tags, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("failed to plot tags: %w", err)
		}
		tags.GlyphStyle.Shape = draw.CircleGlyph{}
		tags.GlyphStyle.Color = color.RGBA{B: 200, A: 255}
		tags.GlyphStyle.Radius = vg.Points(4)
		p.Add(tags)
		p.Legend.Add("tags", tags)

		names, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
		if err != nil {
			return fmt.Errorf("failed to label tags: %w", err)
		}
		p.Add(names)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
