// Package model defines the JSON bodies exchanged over HTTP.
package model

import "time"

type GenerateResponse struct {
	Success        bool      `json:"success"`
	NumPanels      int       `json:"num_panels"`
	Message        string    `json:"message"`
	JobID          string    `json:"job_id"`
	PanelWidthPx   int       `json:"panel_width_px"`
	PanelHeightPx  int       `json:"panel_height_px"`
	ScaledWidthPx  int       `json:"scaled_width_px"`
	ScaledHeightPx int       `json:"scaled_height_px"`
	ExpiresAt      time.Time `json:"expires_at,omitzero"`
}

type LayoutInfo struct {
	WallWidth  float64 `json:"wall_width"`
	WallHeight float64 `json:"wall_height"`
	PanelWidth float64 `json:"panel_width"`
	DPI        float64 `json:"dpi"`
	Overlap    float64 `json:"overlap"`
}

type JobResponse struct {
	JobID               string     `json:"job_id"`
	CreatedAt           time.Time  `json:"created_at"`
	ExpiresAt           time.Time  `json:"expires_at,omitzero"`
	Format              string     `json:"format"`
	Fingerprint         string     `json:"fingerprint"`
	Layout              LayoutInfo `json:"layout"`
	NumPanels           int        `json:"num_panels"`
	EffectivePanelWidth float64    `json:"effective_panel_width"`
	ScaleFactor         float64    `json:"scale_factor"`
	PatternWidthPx      int        `json:"pattern_width_px"`
	PatternHeightPx     int        `json:"pattern_height_px"`
	ScaledWidthPx       int        `json:"scaled_width_px"`
	ScaledHeightPx      int        `json:"scaled_height_px"`
	PanelWidthPx        int        `json:"panel_width_px"`
	PanelHeightPx       int        `json:"panel_height_px"`
	PanelURLs           []string   `json:"panel_urls"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
