package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/eak1mov/go-tiles3d/content"
	"github.com/eak1mov/go-tiles3d/internal/config"
	"github.com/eak1mov/go-tiles3d/loader"
	"github.com/eak1mov/go-tiles3d/lod"
	"github.com/eak1mov/go-tiles3d/render"
	"github.com/eak1mov/go-tiles3d/tileset"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gpucontext"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type simulateCmd struct {
	inputFormat string
	inputPath   string
	tilesetURI  string
	configPath  string
	maxSSE      float64
	workers     int
	frames      int
	fps         int
	flat        bool
	watch       bool
}

func (c *simulateCmd) Name() string     { return "simulate" }
func (c *simulateCmd) Synopsis() string { return "stream a tileset headlessly along a camera approach" }
func (c *simulateCmd) Usage() string {
	return "tiles3d simulate -i <path> [-if <format>] [-t <uri>] [-config <file>] [-sse <px>] [-workers <n>] [-frames <n>] [-fps <n>] [-flat] [-watch]\n"
}
func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (dir, pmtiles, sqlite)")
	f.StringVar(&c.tilesetURI, "t", "", "Tileset URI within the input")
	f.StringVar(&c.configPath, "config", "", "TOML configuration file")
	f.Float64Var(&c.maxSSE, "sse", 0, "Maximum screen-space error, overrides the config")
	f.IntVar(&c.workers, "workers", 0, "Loader workers, overrides the config")
	f.IntVar(&c.frames, "frames", 300, "Number of frames to render")
	f.IntVar(&c.fps, "fps", 60, "Frames per second")
	f.BoolVar(&c.flat, "flat", false, "Use the flat projection")
	f.BoolVar(&c.watch, "watch", false, "Watch the input for changes")
}

// countingDrawer stands in for a GPU renderer and counts what would be drawn.
type countingDrawer struct {
	bound    atomic.Int64
	drawn    atomic.Int64
	released atomic.Int64
}

func (d *countingDrawer) Bind(gpucontext.DeviceProvider, *content.Model) error {
	d.bound.Add(1)
	return nil
}

func (d *countingDrawer) Draw(*render.State, *content.Model) bool {
	d.drawn.Add(1)
	return true
}

func (d *countingDrawer) Release(*content.Model) { d.released.Add(1) }

func (c *simulateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		slog.Error("config", "error", err)
		return subcommands.ExitFailure
	}
	if c.maxSSE > 0 {
		cfg.LOD.MaxScreenSpaceError = c.maxSSE
	}
	if c.workers > 0 {
		cfg.Loader.Workers = c.workers
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "error", err)
		return subcommands.ExitFailure
	}
	level, _ := cfg.Level()
	slog.SetLogLoggerLevel(level)
	logger := slog.Default()

	src, err := openSource(c.inputFormat, c.inputPath, c.tilesetURI)
	if err != nil {
		slog.Error("open", "error", err)
		return subcommands.ExitFailure
	}
	defer src.close()

	if c.watch {
		if err := src.Connect(ctx); err != nil {
			slog.Error("watch", "error", err)
			return subcommands.ExitFailure
		}
		defer src.Disconnect()
	}

	ts, err := tileset.Load(ctx, src, src.tilesetURI)
	if err != nil {
		slog.Error("load tileset", "uri", src.tilesetURI, "error", err)
		return subcommands.ExitFailure
	}

	drawer := &countingDrawer{}
	mgr := loader.NewManager(render.NullContext{}, cfg.LoaderOptions(logger)...)
	defer mgr.Close()
	root := lod.NewRoot(ts, src, mgr, content.NewHeaderDecoder(drawer, cfg.DecoderOptions(logger)...), cfg.LODOptions(logger)...)
	defer root.Close()

	projection := render.ProjectionGlobe
	if c.flat {
		projection = render.ProjectionFlat
	}
	path := newApproach(ts.Root, projection)

	frameTime := time.Second / time.Duration(max(c.fps, 1))
	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	var totals lod.Stats
	drawnFrames := 0
	bar := progressbar.New(c.frames)
	for frame := range c.frames {
		t := float64(frame) / float64(max(c.frames-1, 1))
		state := render.NewState(path.camera(t), 1920, 1080, projection, render.WithFrame(uint64(frame)))
		if root.Draw(state) {
			drawnFrames++
		}
		s := root.Stats()
		totals.Dispatched += s.Dispatched
		totals.Loaded += s.Loaded
		totals.Failed += s.Failed
		totals.Released += s.Released
		totals.Throttled += s.Throttled
		bar.Add(1)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return subcommands.ExitFailure
		}
	}
	bar.Finish()
	fmt.Println()

	last := root.Stats()
	ms := mgr.Stats()
	fmt.Printf("frames with content: %d of %d\n", drawnFrames, c.frames)
	fmt.Printf("last frame:          %d visited, %d culled, %d rejected, %d drawn\n", last.Visited, last.Culled, last.Rejected, last.Drawn)
	fmt.Printf("loads:               %d dispatched, %d loaded, %d failed, %d throttled\n", totals.Dispatched, totals.Loaded, totals.Failed, totals.Throttled)
	fmt.Printf("released:            %d contents\n", totals.Released)
	fmt.Printf("loader:              %d submitted, %d canceled, %d contexts\n", ms.Submitted, ms.Canceled, ms.Contexts)
	fmt.Printf("models:              %d bound, %d draws, %d released\n", drawer.bound.Load(), drawer.drawn.Load(), drawer.released.Load())
	return subcommands.ExitSuccess
}

// approach moves the camera from far above the root volume down to it.
type approach struct {
	center    mgl64.Vec3
	direction mgl64.Vec3
	up        mgl64.Vec3
	near, far float64
}

func newApproach(root *tileset.Node, projection render.Projection) approach {
	v := root.Volume().Transform(root.WorldTransform())
	a := approach{
		center: v.Center(),
		near:   v.Radius() * 1.5,
		far:    v.Radius() * 50,
		up:     mgl64.Vec3{0, 0, 1},
	}
	if projection == render.ProjectionFlat {
		a.center = v.FlatCenter()
		a.near, a.far = a.near*v.Padding(), a.far*v.Padding()
		a.direction = mgl64.Vec3{0, -1, 2}.Normalize()
		return a
	}
	if a.center.Len() > 1 {
		// above the centroid, tilted towards the pole
		a.direction = a.center.Normalize()
		a.up = mgl64.Vec3{0, 0, 1}.Sub(a.direction.Mul(a.direction[2]))
		if a.up.Len() < 1e-6 {
			a.up = mgl64.Vec3{0, 1, 0}
		}
		a.up = a.up.Normalize()
		return a
	}
	a.direction = mgl64.Vec3{0, -1, 1}.Normalize()
	return a
}

func (a approach) camera(t float64) render.Camera {
	distance := a.far * math.Pow(a.near/a.far, t)
	return render.Camera{
		Position: a.center.Add(a.direction.Mul(distance)),
		Target:   a.center,
		Up:       a.up,
		FovY:     math.Pi / 3,
		Near:     max(distance/1000, 0.1),
		Far:      distance * 100,
	}
}
