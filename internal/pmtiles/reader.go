package pmtiles

import (
	"os"
)

// FileAccessFunc reads length bytes at offset of the archive.
type FileAccessFunc = func(offset, length uint64) ([]byte, error)

// Reader reads tiles and metadata of an archive. It is safe for concurrent use
// when the underlying file access is.
type Reader struct {
	fileAccess FileAccessFunc
	fileCloser func() error
	header     *Header
}

func OpenFile(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(func(offset, length uint64) ([]byte, error) {
		buffer := make([]byte, length)
		if _, err := file.ReadAt(buffer, int64(offset)); err != nil {
			return nil, err
		}
		return buffer, nil
	})
	if err != nil {
		file.Close()
		return nil, err
	}
	r.fileCloser = file.Close
	return r, nil
}

func NewReader(fileAccess FileAccessFunc) (*Reader, error) {
	headerData, err := fileAccess(0, HeaderLength)
	if err != nil {
		return nil, err
	}
	header := &Header{}
	if err := header.UnmarshalBinary(headerData); err != nil {
		return nil, err
	}
	return &Reader{
		fileAccess: fileAccess,
		fileCloser: func() error { return nil },
		header:     header,
	}, nil
}

func (r *Reader) Close() error {
	return r.fileCloser()
}

func (r *Reader) Header() Header { return *r.header }

func (r *Reader) ReadMetadata() ([]byte, error) {
	data, err := r.fileAccess(r.header.Metadata.Offset, r.header.Metadata.Length)
	if err != nil {
		return nil, err
	}
	return decompress(data, r.header.InternalCompression)
}

func (r *Reader) readDirectory(offset, length uint64) ([]entry, error) {
	compressed, err := r.fileAccess(offset, length)
	if err != nil {
		return nil, err
	}
	data, err := decompress(compressed, r.header.InternalCompression)
	if err != nil {
		return nil, err
	}
	return deserializeDirectory(data)
}

// ReadTile returns the payload of a tile. A missing tile yields an empty slice with no error.
func (r *Reader) ReadTile(id TileID) ([]byte, error) {
	if !id.Valid() {
		return make([]byte, 0), nil
	}
	code := encodeTileID(id)
	dirOffset, dirLength := r.header.Root.Offset, r.header.Root.Length
	for range 4 {
		entries, err := r.readDirectory(dirOffset, dirLength)
		if err != nil {
			return nil, err
		}
		e, found := findEntry(entries, code)
		if !found {
			return make([]byte, 0), nil
		}
		if e.runLength > 0 {
			return r.fileAccess(r.header.TileData.Offset+e.offset, uint64(e.length))
		}
		dirOffset = r.header.Leaves.Offset + e.offset
		dirLength = uint64(e.length)
	}
	return nil, ErrInvalidHeader
}

// VisitTiles calls the visitor for every tile in directory order.
func (r *Reader) VisitTiles(visitor func(TileID, []byte) error) error {
	var traverse func(offset, length uint64) error
	traverse = func(offset, length uint64) error {
		entries, err := r.readDirectory(offset, length)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.runLength == 0 {
				if err := traverse(r.header.Leaves.Offset+e.offset, uint64(e.length)); err != nil {
					return err
				}
				continue
			}
			data, err := r.fileAccess(r.header.TileData.Offset+e.offset, uint64(e.length))
			if err != nil {
				return err
			}
			for i := range e.runLength {
				if err := visitor(decodeTileID(e.code+uint64(i)), data); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return traverse(r.header.Root.Offset, r.header.Root.Length)
}
