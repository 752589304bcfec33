package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
	"github.com/mohammed-shakir/wallpanels/internal/core/config"
	"github.com/mohammed-shakir/wallpanels/internal/core/model"
	"github.com/mohammed-shakir/wallpanels/internal/generation"
	mylog "github.com/mohammed-shakir/wallpanels/internal/logger"
	"github.com/mohammed-shakir/wallpanels/internal/panels"
	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

// multipart headers and the small form fields ride on top of the file
const formOverhead = 1 << 20

// PanelService is what the handlers need from the panel engine.
type PanelService interface {
	Generate(ctx context.Context, req panels.GenerateRequest) (*generation.Generation, error)
	Latest() (*generation.Generation, error)
	Job(id string) (*generation.Generation, error)
	Panel(ctx context.Context, g *generation.Generation, n int) ([]byte, error)
	Release(ctx context.Context, id string) error
}

// HandleGenerate accepts a multipart pattern upload and starts a new
// generation.
func HandleGenerate(logger *slog.Logger, cfg config.Config, svc PanelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+formOverhead)

		req, err := ParseGenerateRequest(r, cfg)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		g, err := svc.Generate(r.Context(), req)
		if err != nil {
			writeError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, model.GenerateResponse{
			Success:        true,
			NumPanels:      g.Dims.NumPanels,
			Message:        fmt.Sprintf("Generated %d panels", g.Dims.NumPanels),
			JobID:          g.ID,
			PanelWidthPx:   g.Dims.PanelWidthPx,
			PanelHeightPx:  g.Dims.PanelHeightPx,
			ScaledWidthPx:  g.Dims.ScaledWidthPx,
			ScaledHeightPx: g.Dims.ScaledHeightPx,
			ExpiresAt:      g.ExpiresAt,
		})
	}
}

// HandleDownload serves a panel of the most recent generation.
func HandleDownload(logger *slog.Logger, svc PanelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := svc.Latest()
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		servePanel(w, r, logger, svc, g)
	}
}

// HandleJobPanel serves a panel of the generation named in the path.
func HandleJobPanel(logger *slog.Logger, svc PanelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := svc.Job(chi.URLParam(r, "jobID"))
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		servePanel(w, r, logger, svc, g)
	}
}

func HandleJob(logger *slog.Logger, svc PanelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := svc.Job(chi.URLParam(r, "jobID"))
		if err != nil {
			writeError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, jobResponse(g))
	}
}

func HandleRelease(logger *slog.Logger, svc PanelService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Release(r.Context(), chi.URLParam(r, "jobID")); err != nil {
			writeError(w, r, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func servePanel(w http.ResponseWriter, r *http.Request, logger *slog.Logger, svc PanelService, g *generation.Generation) {
	n, err := ParsePanelNumber(chi.URLParam(r, "panelNum"))
	if err != nil {
		writeError(w, r, logger, err)
		return
	}
	ctx := mylog.WithPanel(r.Context(), n)

	b, err := svc.Panel(ctx, g, n)
	if err != nil {
		writeError(w, r.WithContext(ctx), logger, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="panel_%02d.png"`, n))
	h.Set("Content-Length", strconv.Itoa(len(b)))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Job-ID", g.ID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// ParseGenerateRequest reads the multipart upload. Layout fields are parsed
// but not range-checked here; the engine validates them before decoding.
func ParseGenerateRequest(r *http.Request, cfg config.Config) (panels.GenerateRequest, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if tooLarge(err) {
			return panels.GenerateRequest{}, payloadTooLarge(cfg.MaxUploadBytes)
		}
		return panels.GenerateRequest{}, apperr.Wrap(apperr.KindInvalidRequest, err, "Expected a multipart form upload")
	}

	layout, err := parseLayout(r, cfg)
	if err != nil {
		return panels.GenerateRequest{}, err
	}

	f, fh, err := r.FormFile("pattern")
	if err != nil {
		return panels.GenerateRequest{}, apperr.Wrap(apperr.KindInvalidRequest, err, "No file provided")
	}
	defer func() { _ = f.Close() }()

	if fh.Size > cfg.MaxUploadBytes {
		return panels.GenerateRequest{}, payloadTooLarge(cfg.MaxUploadBytes)
	}
	data, err := io.ReadAll(io.LimitReader(f, cfg.MaxUploadBytes+1))
	if err != nil {
		return panels.GenerateRequest{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > cfg.MaxUploadBytes {
		return panels.GenerateRequest{}, payloadTooLarge(cfg.MaxUploadBytes)
	}

	return panels.GenerateRequest{Filename: fh.Filename, Data: data, Layout: layout}, nil
}

func parseLayout(r *http.Request, cfg config.Config) (tiling.LayoutSpec, error) {
	var (
		s   tiling.LayoutSpec
		err error
	)
	if s.WallWidth, err = formFloat(r, "wall_width", nil); err != nil {
		return s, err
	}
	if s.WallHeight, err = formFloat(r, "wall_height", nil); err != nil {
		return s, err
	}
	if s.PanelWidth, err = formFloat(r, "panel_width", nil); err != nil {
		return s, err
	}
	overlap := cfg.DefaultOverlap
	if s.Overlap, err = formFloat(r, "overlap", &overlap); err != nil {
		return s, err
	}

	s.DPI = float64(cfg.DefaultDPI)
	if raw := strings.TrimSpace(r.FormValue("dpi")); raw != "" {
		dpi, err := strconv.Atoi(raw)
		if err != nil {
			return s, apperr.InvalidLayout("dpi must be an integer (got %q)", raw)
		}
		s.DPI = float64(dpi)
	}
	return s, nil
}

func formFloat(r *http.Request, name string, def *float64) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		if def != nil {
			return *def, nil
		}
		return 0, apperr.InvalidLayout("missing required parameter: %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.InvalidLayout("%s must be a number (got %q)", name, raw)
	}
	return v, nil
}

// ParsePanelNumber parses a positive panel number from the path.
func ParsePanelNumber(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, apperr.New(apperr.KindInvalidPanel, "Invalid panel number")
	}
	return n, nil
}

func jobResponse(g *generation.Generation) model.JobResponse {
	urls := make([]string, 0, g.Dims.NumPanels)
	for n := 1; n <= g.Dims.NumPanels; n++ {
		urls = append(urls, fmt.Sprintf("/jobs/%s/panels/%d", g.ID, n))
	}
	return model.JobResponse{
		JobID:       g.ID,
		CreatedAt:   g.CreatedAt,
		ExpiresAt:   g.ExpiresAt,
		Format:      g.Format,
		Fingerprint: fmt.Sprintf("%016x", g.Fingerprint),
		Layout: model.LayoutInfo{
			WallWidth:  g.Spec.WallWidth,
			WallHeight: g.Spec.WallHeight,
			PanelWidth: g.Spec.PanelWidth,
			DPI:        g.Spec.DPI,
			Overlap:    g.Spec.Overlap,
		},
		NumPanels:           g.Dims.NumPanels,
		EffectivePanelWidth: g.Dims.EffectivePanelWidth,
		ScaleFactor:         g.Dims.ScaleFactor,
		PatternWidthPx:      g.Dims.PatternWidthPx,
		PatternHeightPx:     g.Dims.PatternHeightPx,
		ScaledWidthPx:       g.Dims.ScaledWidthPx,
		ScaledHeightPx:      g.Dims.ScaledHeightPx,
		PanelWidthPx:        g.Dims.PanelWidthPx,
		PanelHeightPx:       g.Dims.PanelHeightPx,
		PanelURLs:           urls,
	}
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return true
	}
	// some multipart read paths flatten the cause into the message
	return strings.Contains(err.Error(), "request body too large")
}

func payloadTooLarge(limit int64) error {
	return apperr.New(apperr.KindPayloadTooLarge, "File too large (max %d MiB)", limit>>20)
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidLayout,
		apperr.KindUnsupportedFormat,
		apperr.KindDecode,
		apperr.KindNoLayout,
		apperr.KindInvalidPanel,
		apperr.KindInvalidRequest:
		return http.StatusBadRequest
	case apperr.KindJobNotFound:
		return http.StatusNotFound
	case apperr.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// writeError converts err to a JSON error body. Errors without a known kind
// are logged in full and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"err", err.Error())
		kind = apperr.KindInternal
	} else {
		logger.DebugContext(r.Context(), "request rejected", "kind", string(kind), "err", err.Error())
	}
	writeJSON(w, status, model.ErrorResponse{Error: apperr.UserMessage(err), Kind: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
