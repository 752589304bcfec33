package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wallpanels/internal/core/config"
	"github.com/mohammed-shakir/wallpanels/internal/logger"
	"github.com/mohammed-shakir/wallpanels/internal/tiling"
)

type layoutFlags struct {
	file string
	spec tiling.LayoutSpec
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	d := config.Defaults()
	f.spec.DPI = float64(d.DefaultDPI)
	f.spec.Overlap = d.DefaultOverlap

	cmd.Flags().StringVar(&f.file, "layout", "", "TOML file with wall_width, wall_height, panel_width, dpi, overlap")
	cmd.Flags().Float64Var(&f.spec.WallWidth, "wall-width", 0, "wall width in inches")
	cmd.Flags().Float64Var(&f.spec.WallHeight, "wall-height", 0, "wall height in inches")
	cmd.Flags().Float64Var(&f.spec.PanelWidth, "panel-width", 0, "panel width in inches")
	cmd.Flags().Float64Var(&f.spec.DPI, "dpi", f.spec.DPI, "print resolution in pixels per inch")
	cmd.Flags().Float64Var(&f.spec.Overlap, "overlap", f.spec.Overlap, "overlap between adjacent panels in inches")
}

// resolve applies the layout file first; flags given on the command line
// win over it.
func (f *layoutFlags) resolve(cmd *cobra.Command) (tiling.LayoutSpec, error) {
	if f.file == "" {
		return f.spec, nil
	}
	var fromFile tiling.LayoutSpec
	fromFile.DPI = f.spec.DPI
	fromFile.Overlap = f.spec.Overlap
	if _, err := toml.DecodeFile(f.file, &fromFile); err != nil {
		return tiling.LayoutSpec{}, fmt.Errorf("read layout %s: %w", f.file, err)
	}
	set := func(name string, dst *float64, v float64) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("wall-width", &fromFile.WallWidth, f.spec.WallWidth)
	set("wall-height", &fromFile.WallHeight, f.spec.WallHeight)
	set("panel-width", &fromFile.PanelWidth, f.spec.PanelWidth)
	set("dpi", &fromFile.DPI, f.spec.DPI)
	set("overlap", &fromFile.Overlap, f.spec.Overlap)
	return fromFile, nil
}

func rootCommand(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "paneltool",
		Short:        "Split a repeating wallpaper pattern into print panels",
		Version:      Version,
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	newLog := func() zerolog.Logger {
		level := "info"
		if verbose {
			level = "debug"
		}
		return logger.Build(logger.Config{Level: level, Console: true, Service: "wallpanels", Component: "paneltool"}, stderr)
	}

	root.AddCommand(planCommand(stdout))
	root.AddCommand(renderCommand(stdout, newLog))
	return root
}

func planCommand(stdout io.Writer) *cobra.Command {
	var (
		lf       layoutFlags
		asJSON   bool
		patternW int
		patternH int
	)
	cmd := &cobra.Command{
		Use:   "plan [pattern]",
		Short: "Print the panel layout for a pattern without rendering",
		Long: `Print the panel layout for a pattern without rendering.

The pattern size is read from the image header, or given with --pattern-width
and --pattern-height when no file is passed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lf.resolve(cmd)
			if err != nil {
				return err
			}
			if err := spec.Validate(); err != nil {
				return err
			}
			w, h := patternW, patternH
			if len(args) == 1 {
				pat, err := loadPattern(args[0], 0)
				if err != nil {
					return err
				}
				w, h = pat.Width, pat.Height
			}
			d, err := tiling.Calculate(w, h, spec)
			if err != nil {
				return err
			}
			return writePlan(stdout, spec, d, asJSON)
		},
	}
	lf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")
	cmd.Flags().IntVar(&patternW, "pattern-width", 0, "pattern width in pixels when no file is given")
	cmd.Flags().IntVar(&patternH, "pattern-height", 0, "pattern height in pixels when no file is given")
	return cmd
}

func renderCommand(stdout io.Writer, newLog func() zerolog.Logger) *cobra.Command {
	var (
		lf        layoutFlags
		outDir    string
		panelNums []int
		maxPixels int64
	)
	cmd := &cobra.Command{
		Use:   "render <pattern>",
		Short: "Render every panel of a layout as PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := lf.resolve(cmd)
			if err != nil {
				return err
			}
			zl := newLog()
			return runRender(cmd.Context(), &zl, stdout, args[0], spec, outDir, panelNums, maxPixels)
		},
	}
	lf.register(cmd)
	cmd.Flags().StringVarP(&outDir, "output", "o", "panels", "directory for panel_NN.png files")
	cmd.Flags().IntSliceVarP(&panelNums, "panel", "p", nil, "render only these panel numbers")
	cmd.Flags().Int64Var(&maxPixels, "max-pixels", config.Defaults().MaxPixels, "refuse layouts larger than this many pixels")
	return cmd
}

func runRender(ctx context.Context, zl *zerolog.Logger, stdout io.Writer, input string, spec tiling.LayoutSpec, outDir string, only []int, maxPixels int64) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	pat, err := loadPattern(input, maxPixels)
	if err != nil {
		return err
	}
	d, err := tiling.Calculate(pat.Width, pat.Height, spec)
	if err != nil {
		return err
	}
	if err := d.CheckBudget(maxPixels); err != nil {
		return err
	}

	nums := only
	if len(nums) == 0 {
		for n := 1; n <= d.NumPanels; n++ {
			nums = append(nums, n)
		}
	}
	for _, n := range nums {
		if !d.ValidPanel(n) {
			return fmt.Errorf("panel %d: out of range 1..%d", n, d.NumPanels)
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	start := time.Now()
	scaled := tiling.ScalePattern(pat.Image, d)
	zl.Debug().
		Int("scaled_w", d.ScaledWidthPx).
		Int("scaled_h", d.ScaledHeightPx).
		Dur("took", time.Since(start)).
		Msg("pattern scaled")

	for _, n := range nums {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := tiling.ComposePanel(scaled, d, n)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := tiling.EncodePNG(&buf, img, d.DPI); err != nil {
			return fmt.Errorf("encode panel %d: %w", n, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("panel_%02d.png", n))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		zl.Debug().Int("panel", n).Int("bytes", buf.Len()).Str("path", path).Msg("panel written")
	}

	zl.Info().
		Int("panels", len(nums)).
		Str("dir", outDir).
		Dur("took", time.Since(start)).
		Msg("render complete")
	_, err = fmt.Fprintf(stdout, "wrote %d panel(s) to %s\n", len(nums), outDir)
	return err
}

func loadPattern(path string, maxPixels int64) (tiling.Pattern, error) {
	if err := tiling.CheckExtension(path); err != nil {
		return tiling.Pattern{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tiling.Pattern{}, fmt.Errorf("read pattern: %w", err)
	}
	return tiling.DecodePattern(data, maxPixels)
}

func writePlan(w io.Writer, spec tiling.LayoutSpec, d tiling.Dimensions, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Layout     tiling.LayoutSpec `json:"layout"`
			Dimensions tiling.Dimensions `json:"dimensions"`
		}{spec, d})
	}
	_, err := fmt.Fprintf(w, `panels:          %d
effective width: %g in
scale factor:    %.4f (pattern %g ppi)
scaled pattern:  %d x %d px
panel size:      %d x %d px at %g dpi
`,
		d.NumPanels,
		d.EffectivePanelWidth,
		d.ScaleFactor, d.PatternPPI,
		d.ScaledWidthPx, d.ScaledHeightPx,
		d.PanelWidthPx, d.PanelHeightPx, d.DPI)
	return err
}
