package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/eak1mov/go-tiles3d/content"
	"github.com/eak1mov/go-tiles3d/source"
	"github.com/eak1mov/go-tiles3d/tileset"
	"github.com/eak1mov/go-tiles3d/volume"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type inspectCmd struct {
	inputFormat  string
	inputPath    string
	tilesetURI   string
	checkContent bool
	list         bool
}

func (c *inspectCmd) Name() string     { return "inspect" }
func (c *inspectCmd) Synopsis() string { return "print tileset structure and validate content" }
func (c *inspectCmd) Usage() string {
	return "tiles3d inspect -i <path> [-if <format>] [-t <uri>] [-content] [-list]\n"
}
func (c *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (dir, pmtiles, sqlite)")
	f.StringVar(&c.tilesetURI, "t", "", "Tileset URI within the input")
	f.BoolVar(&c.checkContent, "content", false, "Fetch and validate every content payload")
	f.BoolVar(&c.list, "list", false, "List every payload stored in the input")
}

func (c *inspectCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	src, err := openSource(c.inputFormat, c.inputPath, c.tilesetURI)
	if err != nil {
		slog.Error("open", "error", err)
		return subcommands.ExitFailure
	}
	defer src.close()

	ts, err := tileset.Load(ctx, src, src.tilesetURI)
	if err != nil {
		slog.Error("load tileset", "uri", src.tilesetURI, "error", err)
		return subcommands.ExitFailure
	}

	stats := ts.Stats()
	fmt.Printf("asset version:   %s\n", ts.Asset.Version)
	fmt.Printf("geometric error: %g\n", ts.GeometricError)
	fmt.Printf("nodes:           %d (%d leaves, %d with content)\n", stats.Nodes, stats.Leaves, stats.Contents)
	fmt.Printf("max depth:       %d\n", stats.MaxDepth)
	printVolume(ts.Root)

	if c.list {
		if visitor, ok := src.Source.(source.Visitor); ok {
			for uri, data := range source.All(visitor) {
				format, _ := content.Sniff(data)
				fmt.Printf("%-8s %10d %s\n", format, len(data), uri)
			}
		}
	}

	if !c.checkContent {
		return subcommands.ExitSuccess
	}

	formats := make(map[content.Format]int)
	failed := 0
	bar := progressbar.New(stats.Contents)
	for n := range ts.Nodes() {
		if !n.HasContent() {
			continue
		}
		bar.Add(1)
		data, _, err := src.Data(ctx, n.ContentURI())
		if err == nil {
			var format content.Format
			if format, err = content.Sniff(data); err == nil {
				formats[format]++
				continue
			}
		}
		failed++
		slog.Warn("content", "uri", n.ContentURI(), "error", err)
	}
	bar.Finish()
	fmt.Println()

	for _, format := range slices.Sorted(maps.Keys(formats)) {
		fmt.Printf("%-8s %d\n", format, formats[format])
	}
	if failed > 0 {
		fmt.Printf("failed   %d\n", failed)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printVolume(root *tileset.Node) {
	v := root.Volume().Transform(root.WorldTransform())
	fmt.Printf("root volume:     %s, radius %.1f m\n", v.Kind(), v.Radius())
	if r, ok := v.(*volume.Region); ok {
		b := r.Bound()
		fmt.Printf("root bounds:     %.6f,%.6f,%.6f,%.6f\n", b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
		return
	}
	c := volume.Geographic(v)
	fmt.Printf("root center:     %.6f,%.6f,%.1f\n", c.Lon, c.Lat, c.Height)
}
