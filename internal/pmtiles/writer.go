package pmtiles

import (
	"bufio"
	"cmp"
	"crypto/md5"
	"io"
	"log/slog"
	"os"
	"slices"
)

// Writer creates an archive. Identical payloads are stored once.
type Writer struct {
	logger *slog.Logger
	file   *os.File
	header Header

	tileWriter *bufio.Writer
	tileOffset uint64

	entries   []entry
	locations map[[16]byte]int // payload hash -> entry index
	contents  uint64
}

type writerConfig struct {
	Metadata []byte
	Logger   *slog.Logger
}

type WriterOption func(*writerConfig)

func WithMetadata(metadata []byte) WriterOption {
	return func(c *writerConfig) { c.Metadata = metadata }
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(c *writerConfig) { c.Logger = logger }
}

func NewWriter(filePath string, opts ...WriterOption) (w *Writer, err error) {
	config := writerConfig{
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&config)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			file.Close()
		}
	}()

	header := newHeader()
	offset := uint64(tileDataMinStart)
	if _, err = file.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, err
	}

	if config.Metadata != nil {
		metadata := compress(config.Metadata)
		if _, err = file.Write(metadata); err != nil {
			return nil, err
		}
		header.Metadata = Section{Offset: offset, Length: uint64(len(metadata))}
		offset += header.Metadata.Length
	}
	header.TileData.Offset = offset

	return &Writer{
		logger:     config.Logger,
		file:       file,
		header:     header,
		tileWriter: bufio.NewWriter(file),
		locations:  make(map[[16]byte]int),
	}, nil
}

func (w *Writer) WriteTile(id TileID, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	code := encodeTileID(id)
	digest := md5.Sum(data)
	if i, exists := w.locations[digest]; exists {
		w.entries = append(w.entries, entry{
			code:      code,
			offset:    w.entries[i].offset,
			length:    w.entries[i].length,
			runLength: 1,
		})
		return nil
	}

	if _, err := w.tileWriter.Write(data); err != nil {
		return err
	}
	w.locations[digest] = len(w.entries)
	w.entries = append(w.entries, entry{
		code:      code,
		offset:    w.tileOffset,
		length:    uint32(len(data)),
		runLength: 1,
	})
	w.tileOffset += uint64(len(data))
	w.contents++
	w.header.MaxZoom = max(w.header.MaxZoom, uint8(id.Z))
	return nil
}

// Finalize writes directories and the header. It must be called before Close.
func (w *Writer) Finalize() error {
	if w.tileWriter == nil {
		panic("tiles3d: finalize called twice")
	}

	if err := w.tileWriter.Flush(); err != nil {
		return err
	}
	w.tileWriter = nil
	w.header.TileData.Length = w.tileOffset
	w.header.Addressed = uint64(len(w.entries))
	w.header.Contents = w.contents

	slices.SortFunc(w.entries, func(a, b entry) int {
		return cmp.Compare(a.code, b.code)
	})
	w.entries = compactEntries(w.entries)
	w.header.Entries = uint64(len(w.entries))

	w.logger.Debug("tiles3d: write directories", "entries", len(w.entries))
	root, leaves := serializeAll(w.entries)

	leavesOffset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(leaves); err != nil {
		return err
	}
	w.header.Leaves = Section{Offset: uint64(leavesOffset), Length: uint64(len(leaves))}

	if _, err := w.file.WriteAt(root, rootDirOffset); err != nil {
		return err
	}
	w.header.Root = Section{Offset: rootDirOffset, Length: uint64(len(root))}

	headerData, err := w.header.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.file.WriteAt(headerData, 0); err != nil {
		return err
	}

	err = w.file.Close()
	w.file = nil
	w.logger.Debug("tiles3d: archive written", "tiles", w.header.Addressed)
	return err
}

func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}
