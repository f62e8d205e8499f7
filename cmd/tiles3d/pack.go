package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/eak1mov/go-tiles3d/source"
	"github.com/google/subcommands"
	"github.com/schollz/progressbar/v3"
)

type packCmd struct {
	inputFormat  string
	inputPath    string
	tilesetURI   string
	outputFormat string
	outputPath   string
	pattern      string
}

func (c *packCmd) Name() string     { return "pack" }
func (c *packCmd) Synopsis() string { return "pack a tileset into a single archive" }
func (c *packCmd) Usage() string {
	return "tiles3d pack -i <path> -o <path> [-if <format>] [-of <format>] [-t <uri>] [-p <pattern>]\n"
}
func (c *packCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input path")
	f.StringVar(&c.inputFormat, "if", "", "Input format (dir, pmtiles, sqlite)")
	f.StringVar(&c.tilesetURI, "t", "", "Tileset URI within the input")
	f.StringVar(&c.outputPath, "o", "", "Output file path")
	f.StringVar(&c.outputFormat, "of", "", "Output format (pmtiles, sqlite)")
	f.StringVar(&c.pattern, "p", source.DefaultPattern, "Content URI pattern for pmtiles output")
}

type archiveWriter interface {
	Write(uri string, data []byte) error
	Finalize() error
	io.Closer
}

func (c *packCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	src, err := openSource(c.inputFormat, c.inputPath, c.tilesetURI)
	if err != nil {
		slog.Error("open", "error", err)
		return subcommands.ExitFailure
	}
	defer src.close()

	visitor, ok := src.Source.(source.Visitor)
	if !ok {
		slog.Error("input cannot be enumerated", "path", c.inputPath)
		return subcommands.ExitFailure
	}

	tilesetData, _, err := src.Data(ctx, src.tilesetURI)
	if err != nil {
		slog.Error("read tileset", "error", err)
		return subcommands.ExitFailure
	}

	var writer archiveWriter
	switch deduceFormat(c.outputFormat, c.outputPath) {
	case "pmtiles":
		writer, err = source.NewArchiveWriter(c.outputPath, src.tilesetURI, tilesetData,
			source.WithPattern(c.pattern), source.WithLogger(slog.Default()))
	case "sqlite":
		var w *source.SQLiteWriter
		if w, err = source.NewSQLiteWriter(c.outputPath, source.WithLogger(slog.Default())); err == nil {
			err = w.Write(src.tilesetURI, tilesetData)
			writer = w
		}
	default:
		slog.Error("invalid output format", "format", c.outputFormat)
		return subcommands.ExitFailure
	}
	if err != nil {
		slog.Error("create output", "error", err)
		return subcommands.ExitFailure
	}
	defer writer.Close()

	bar := progressbar.Default(-1, "packing")
	err = visitor.Visit(func(uri string, data []byte) error {
		bar.Add(1)
		if uri == src.tilesetURI {
			return nil
		}
		return writer.Write(uri, data)
	})
	bar.Finish()
	fmt.Println()
	if err != nil {
		slog.Error("pack", "error", err)
		return subcommands.ExitFailure
	}

	if err := writer.Finalize(); err != nil {
		slog.Error("finalize", "error", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
