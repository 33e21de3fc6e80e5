package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/wall-texture-mcp/internal/config"
	"github.com/ironsheep/wall-texture-mcp/internal/detection"
	"github.com/ironsheep/wall-texture-mcp/internal/imaging"
	"github.com/ironsheep/wall-texture-mcp/internal/pipeline"
	"github.com/ironsheep/wall-texture-mcp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdin/stdout",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, server.WithLogger(logger), server.WithVersion(Version))
	logger.Info("serving MCP on stdio", "version", Version)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Texture the walls of a room photograph",
	Example: `  wall-texture-mcp apply --room room.jpg --texture brick.png --output out.png
  wall-texture-mcp apply --room room.jpg --texture paint.png --selection walls.json --opacity 0.5 --output out.jpg`,
	RunE: runApply,
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Print the wall regions detected in a room photograph",
	RunE:  runDetect,
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate processing time for a room and texture",
	RunE:  runEstimate,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default configuration to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Save(args[0], config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

func init() {
	f := applyCmd.Flags()
	f.String("room", "", "Room photograph")
	f.String("texture", "", "Texture image")
	f.StringP("output", "o", "", "Output file; the extension selects the format")
	f.String("selection", "", "JSON file with wall regions; skips detection")
	f.Float64("opacity", 0, "Texture opacity 0-1 (default from config)")
	f.Bool("no-lighting", false, "Skip the lighting match pass")
	f.Int("quality", 0, "JPEG quality 1-100 (default from config)")
	f.Bool("progress", false, "Print stage progress to stderr")
	for _, name := range []string{"room", "texture", "output"} {
		_ = applyCmd.MarkFlagRequired(name)
	}

	detectCmd.Flags().String("room", "", "Room photograph")
	detectCmd.Flags().String("preview", "", "Write a PNG with the detected walls tinted")
	_ = detectCmd.MarkFlagRequired("room")

	estimateCmd.Flags().String("room", "", "Room photograph")
	estimateCmd.Flags().String("texture", "", "Texture image")
	estimateCmd.Flags().Bool("no-lighting", false, "Estimate without the lighting match pass")
	estimateCmd.Flags().Bool("no-perspective", false, "Estimate without perspective correction")
	estimateCmd.Flags().Int("edge-smoothing", pipeline.DefaultEdgeSmoothing, "Edge smoothing 0-100")
	_ = estimateCmd.MarkFlagRequired("room")
	_ = estimateCmd.MarkFlagRequired("texture")

	configCmd.AddCommand(configInitCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	roomPath, _ := f.GetString("room")
	texturePath, _ := f.GetString("texture")
	output, _ := f.GetString("output")
	selectionPath, _ := f.GetString("selection")

	opts := cfg.Options()
	if f.Changed("opacity") {
		opts.TextureOpacity, _ = f.GetFloat64("opacity")
	}
	if f.Changed("quality") {
		opts.OutputQuality, _ = f.GetInt("quality")
	}
	if noLighting, _ := f.GetBool("no-lighting"); noLighting {
		opts.LightingMatch = false
	}
	if selectionPath != "" {
		sel, err := readSelection(selectionPath)
		if err != nil {
			return err
		}
		opts.WallSelection = sel
	}

	cache := imaging.NewImageCache(cfg.Limits.MaxFileSize)
	room, err := cache.Load(roomPath)
	if err != nil {
		return fmt.Errorf("room: %w", err)
	}
	texture, err := cache.Load(texturePath)
	if err != nil {
		return fmt.Errorf("texture: %w", err)
	}

	var hooks pipeline.Hooks
	if show, _ := f.GetBool("progress"); show {
		hooks = progressPrinter(cmd.ErrOrStderr())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.New(cfg.PipelineConfig(), logger).Process(ctx, room, texture, opts, hooks)
	if errors.Is(err, pipeline.ErrCancelled) {
		return errors.New("interrupted")
	}
	if err != nil {
		return err
	}

	enc, err := imaging.Save(res.Image, output, cfg.Output.Format, opts.Normalize().OutputQuality)
	if err != nil {
		return err
	}
	logger.Info("texture applied",
		"output", output,
		"format", enc.Format,
		"bytes", len(enc.Data),
		"strategy", res.Diagnostics.Strategy,
		"regions", res.Diagnostics.RegionCount,
		"coverage", res.Diagnostics.MaskCoverage)
	return nil
}

// progressPrinter reports each stage on its own line and the percentage as it
// advances.
func progressPrinter(w io.Writer) pipeline.Hooks {
	last := -1
	return pipeline.Hooks{
		OnStageChange: func(st pipeline.Stage) {
			fmt.Fprintf(w, "%-10s", st)
		},
		OnProgress: func(p float64) {
			if pct := int(p); pct != last {
				last = pct
				fmt.Fprintf(w, " %3d%%", pct)
			}
			if p == pipeline.StageComplete.Target() {
				fmt.Fprintln(w)
			}
		},
	}
}

// readSelection parses a JSON array of wall regions.
func readSelection(path string) (detection.SelectionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selection: %w", err)
	}
	var sel detection.SelectionSet
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := sel.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sel, nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	roomPath, _ := cmd.Flags().GetString("room")
	previewPath, _ := cmd.Flags().GetString("preview")

	room, err := imaging.NewImageCache(cfg.Limits.MaxFileSize).Load(roomPath)
	if err != nil {
		return err
	}
	walls, err := pipeline.New(cfg.PipelineConfig(), logger).DetectWalls(room)
	if err != nil {
		return err
	}

	if previewPath != "" {
		tint := color.NRGBA{R: 0, G: 200, B: 255, A: 140}
		if _, err := imaging.Save(walls.Mask.Overlay(walls.Room, tint), previewPath, "png", 0); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"strategy":      walls.Strategy,
		"regions":       walls.Regions,
		"mask_coverage": walls.Mask.Coverage(),
		"mask_fallback": walls.Mask.UsedFallback(),
	})
}

func runEstimate(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	roomPath, _ := f.GetString("room")
	texturePath, _ := f.GetString("texture")

	room, err := os.Stat(roomPath)
	if err != nil {
		return err
	}
	texture, err := os.Stat(texturePath)
	if err != nil {
		return err
	}

	opts := cfg.Options()
	if v, _ := f.GetBool("no-lighting"); v {
		opts.LightingMatch = false
	}
	if v, _ := f.GetBool("no-perspective"); v {
		opts.PerspectiveCorrection = false
	}
	opts.EdgeSmoothing, _ = f.GetInt("edge-smoothing")

	d := pipeline.EstimateProcessingTime(room.Size(), texture.Size(), opts)
	fmt.Fprintf(cmd.OutOrStdout(), "%.0fs\n", d.Seconds())
	return nil
}
