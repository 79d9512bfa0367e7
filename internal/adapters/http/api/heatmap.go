package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/okian/occupancy/internal/adapters/repository"
	service "github.com/okian/occupancy/internal/app"
	"github.com/okian/occupancy/internal/domain/heatmap"
	"github.com/okian/occupancy/internal/domain/window"
	"github.com/okian/occupancy/pkg/logger"
	"github.com/okian/occupancy/pkg/metrics"
)

// HeatmapDependencies defines the interface for heatmap reads.
type HeatmapDependencies interface {
	Heatmap(ctx context.Context, q service.HeatmapQuery) (heatmap.Heatmap, error)
	Resolve(q service.HeatmapQuery) (service.HeatmapQuery, error)
}

// HeatmapHandler handles heatmap requests.
type HeatmapHandler struct {
	deps    HeatmapDependencies
	degrade bool
	logger  logger.Logger
}

// NewHeatmapHandler creates a new heatmap handler.
func NewHeatmapHandler(deps HeatmapDependencies, degrade bool, l logger.Logger) *HeatmapHandler {
	return &HeatmapHandler{deps: deps, degrade: degrade, logger: l.Named("heatmap")}
}

type heatmapResponse struct {
	Anchor   civil.Date    `json:"anchor"`
	Months   int           `json:"months"`
	Headers  []string      `json:"headers"`
	Rows     []heatmap.Row `json:"rows"`
	Degraded bool          `json:"degraded"`
}

// HandleGetHeatmap handles GET /heatmap?anchor=&months=&q=&role= requests.
func (h *HeatmapHandler) HandleGetHeatmap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := parseHeatmapQuery(r)
	if err != nil {
		fail(ctx, h.logger, w, err)
		return
	}
	q, err = h.deps.Resolve(q)
	if err != nil {
		fail(ctx, h.logger, w, err)
		return
	}

	hm, err := h.deps.Heatmap(ctx, q)
	if err != nil {
		if h.degrade && errors.Is(err, repository.ErrCollaboratorUnavailable) {
			h.writeDegraded(ctx, w, q, err)
			return
		}
		fail(ctx, h.logger, w, err)
		return
	}

	rows := hm.Ordered()
	if rows == nil {
		rows = []heatmap.Row{}
	}
	writeJSON(w, http.StatusOK, heatmapResponse{
		Anchor:  q.Anchor,
		Months:  q.Months,
		Headers: hm.Headers,
		Rows:    rows,
	})
}

// writeDegraded answers with the requested headers and no rows.
func (h *HeatmapHandler) writeDegraded(ctx context.Context, w http.ResponseWriter, q service.HeatmapQuery, cause error) {
	windows, err := window.Generate(q.Anchor, q.Months)
	if err != nil {
		fail(ctx, h.logger, w, err)
		return
	}
	metrics.RecordDegradedResponse()
	h.logger.Warn(ctx, "collaborator unavailable, serving degraded heatmap", logger.Error(cause))
	writeJSON(w, http.StatusOK, heatmapResponse{
		Anchor:   q.Anchor,
		Months:   q.Months,
		Headers:  window.Labels(windows),
		Rows:     []heatmap.Row{},
		Degraded: true,
	})
}

// parseHeatmapQuery reads anchor (YYYY-MM-DD or YYYY-MM), months, q and role.
func parseHeatmapQuery(r *http.Request) (service.HeatmapQuery, error) {
	values := r.URL.Query()
	q := service.HeatmapQuery{
		Filter: repository.EmployeeFilter{
			Query: values.Get("q"),
			Role:  values.Get("role"),
		},
	}

	if raw := strings.TrimSpace(values.Get("anchor")); raw != "" {
		anchor, err := parseAnchor(raw)
		if err != nil {
			return q, err
		}
		q.Anchor = anchor
	}
	if raw := strings.TrimSpace(values.Get("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, fmt.Errorf("%w: months must be a positive integer, got %q", window.ErrInvalidWindowCount, raw)
		}
		q.Months = n
	}
	return q, nil
}

func parseAnchor(raw string) (civil.Date, error) {
	if d, err := civil.ParseDate(raw); err == nil {
		return d, nil
	}
	if w, err := window.ParseLabel(raw); err == nil {
		return w.First, nil
	}
	return civil.Date{}, fmt.Errorf("%w: anchor %q must be YYYY-MM-DD or YYYY-MM", ErrBadRequest, raw)
}
