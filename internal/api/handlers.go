package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/rkm/stac-chipper/internal/pipeline"
)

// maxRequestBody caps the accepted GeoJSON payload at 1 MiB.
const maxRequestBody = 1 << 20

// Handlers contains all HTTP handlers for the chip service.
type Handlers struct {
	pipe   *pipeline.Pipeline
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(pipe *pipeline.Pipeline, logger *slog.Logger) *Handlers {
	return &Handlers{
		pipe:   pipe,
		logger: logger,
	}
}

// Health returns a simple health check response.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Chip extracts one crop for the posted footprint and returns it as a PNG.
// The body is a GeoJSON Feature or bare geometry. Outcome statuses map to
// HTTP statuses: rejected input is 400, missing coverage is 404, and an
// operational fault is 502.
// POST /chips
func (h *Handlers) Chip(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		WriteBadRequest(w, "failed to read request body")
		return
	}
	if len(body) > maxRequestBody {
		WriteBadRequest(w, "request body too large")
		return
	}

	feature, err := parseFeature(body)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	if feature.ID == "" {
		feature.ID = GetRequestID(r.Context())
	}

	img, out := h.pipe.ExtractChip(r.Context(), feature)

	switch out.Status {
	case pipeline.StatusSuccess:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img.NRGBA()); err != nil {
			h.logger.Error("failed to encode crop",
				slog.String("feature_id", feature.ID),
				slog.String("error", err.Error()),
			)
			WriteInternalError(w, "failed to encode crop")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		if out.ItemID != "" {
			w.Header().Set("X-Item-ID", out.ItemID)
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, &buf); err != nil {
			h.logger.Error("failed to write crop response",
				slog.String("feature_id", feature.ID),
				slog.String("error", err.Error()),
			)
		}

	case pipeline.StatusRejected:
		WriteBadRequest(w, out.Err.Error())

	case pipeline.StatusNoCoverage:
		WriteNoCoverage(w, "no usable imagery for the requested footprint")

	default:
		h.logger.Error("chip extraction failed",
			slog.String("feature_id", feature.ID),
			slog.String("error", out.Err.Error()),
		)
		WriteUpstreamError(w, "chip extraction failed")
	}
}

// parseFeature decodes the request body as a GeoJSON Feature or a bare
// geometry object.
func parseFeature(body []byte) (pipeline.Feature, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return pipeline.Feature{}, fmt.Errorf("invalid JSON body: %w", err)
	}

	switch probe.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(body)
		if err != nil {
			return pipeline.Feature{}, fmt.Errorf("invalid GeoJSON feature: %w", err)
		}
		return pipeline.Feature{ID: resolveFeatureID(f), Geometry: f.Geometry}, nil
	case "FeatureCollection":
		return pipeline.Feature{}, fmt.Errorf("expected a single feature or geometry, got a FeatureCollection")
	default:
		g, err := geojson.UnmarshalGeometry(body)
		if err != nil {
			return pipeline.Feature{}, fmt.Errorf("invalid GeoJSON geometry: %w", err)
		}
		return pipeline.Feature{Geometry: g.Geometry()}, nil
	}
}

func resolveFeatureID(f *geojson.Feature) string {
	if v, ok := f.Properties["full_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := f.Properties["id"].(string); ok && v != "" {
		return v
	}
	switch v := f.ID.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
