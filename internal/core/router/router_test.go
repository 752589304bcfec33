package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wallpanels/internal/apperr"
	"github.com/mohammed-shakir/wallpanels/internal/core/config"
	"github.com/mohammed-shakir/wallpanels/internal/core/model"
	"github.com/mohammed-shakir/wallpanels/internal/generation"
	"github.com/mohammed-shakir/wallpanels/internal/panels"
	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

type fakeService struct {
	latest   *generation.Generation
	panelErr error
	gotPanel int
	req      panels.GenerateRequest
}

func (f *fakeService) Generate(_ context.Context, req panels.GenerateRequest) (*generation.Generation, error) {
	f.req = req
	return &generation.Generation{ID: "job", Dims: tiling.Dimensions{NumPanels: 3}}, nil
}

func (f *fakeService) Latest() (*generation.Generation, error) {
	if f.latest == nil {
		return nil, apperr.NoLayout()
	}
	return f.latest, nil
}

func (f *fakeService) Job(string) (*generation.Generation, error) { return f.Latest() }

func (f *fakeService) Panel(_ context.Context, _ *generation.Generation, n int) ([]byte, error) {
	f.gotPanel = n
	if f.panelErr != nil {
		return nil, f.panelErr
	}
	return []byte("png"), nil
}

func (f *fakeService) Release(context.Context, string) error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func download(svc PanelService, panel string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/download/{panelNum}", HandleDownload(discard(), svc))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/download/"+panel, nil))
	return rr
}

func TestParsePanelNumber(t *testing.T) {
	for _, ok := range []string{"1", "07", " 12 "} {
		if _, err := ParsePanelNumber(ok); err != nil {
			t.Fatalf("ParsePanelNumber(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "0", "-1", "1.5", "x", "99999999999999999999"} {
		if _, err := ParsePanelNumber(bad); !apperr.Is(err, apperr.KindInvalidPanel) {
			t.Fatalf("ParsePanelNumber(%q) err=%v want invalid panel", bad, err)
		}
	}
}

func TestHandleDownload_Headers(t *testing.T) {
	svc := &fakeService{latest: &generation.Generation{ID: "abc", Dims: tiling.Dimensions{NumPanels: 3}}}
	rr := download(svc, "2")

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if svc.gotPanel != 2 {
		t.Fatalf("panel=%d want 2", svc.gotPanel)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="panel_02.png"` {
		t.Fatalf("content-disposition=%q", cd)
	}
	if rr.Body.String() != "png" {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestHandleDownload_InternalErrorIsSanitized(t *testing.T) {
	svc := &fakeService{
		latest:   &generation.Generation{ID: "abc", Dims: tiling.Dimensions{NumPanels: 3}},
		panelErr: errors.New("open /var/secret/buffer: permission denied"),
	}
	rr := download(svc, "1")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("internal detail leaked: %s", rr.Body.String())
	}
	var e model.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != "internal" {
		t.Fatalf("kind=%q", e.Kind)
	}
}

func TestHandleGenerate_DefaultsFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.DefaultDPI = 300
	cfg.DefaultOverlap = 1.5

	body, ct := multipartBody(t, map[string]string{"wall_width": "120", "wall_height": "96", "panel_width": "24"}, "a.png", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	svc := &fakeService{}

	HandleGenerate(discard(), cfg, svc)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	l := svc.req.Layout
	if l.DPI != 300 || l.Overlap != 1.5 || l.WallWidth != 120 || l.WallHeight != 96 || l.PanelWidth != 24 {
		t.Fatalf("layout=%+v", l)
	}
	if svc.req.Filename != "a.png" || string(svc.req.Data) != "x" {
		t.Fatalf("req=%+v", svc.req)
	}
}

func TestHandleGenerate_NonNumericField(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{"wall_width": "wide", "wall_height": "96", "panel_width": "24"}, "a.png", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/generate", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()

	HandleGenerate(discard(), config.Defaults(), &fakeService{})(rr, req)

	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "invalid_layout") {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindInvalidLayout:     http.StatusBadRequest,
		apperr.KindUnsupportedFormat: http.StatusBadRequest,
		apperr.KindDecode:            http.StatusBadRequest,
		apperr.KindNoLayout:          http.StatusBadRequest,
		apperr.KindInvalidPanel:      http.StatusBadRequest,
		apperr.KindJobNotFound:       http.StatusNotFound,
		apperr.KindPayloadTooLarge:   http.StatusRequestEntityTooLarge,
		apperr.KindInternal:          http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := statusFor(k); got != want {
			t.Fatalf("statusFor(%s)=%d want %d", k, got, want)
		}
	}
}
