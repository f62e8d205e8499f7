package source

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/eak1mov/go-tiles3d/internal/pmtiles"
)

// DefaultPattern is the content URI template of implicitly addressed tiles.
const DefaultPattern = "tiles/{z}/{x}/{y}.glb"

var ErrInvalidPattern = errors.New("tiles3d: invalid uri pattern")

// Pattern maps content URIs such as "tiles/3/5/1.glb" to quadtree tile addresses.
type Pattern struct {
	template string
	re       *regexp.Regexp
}

func NewPattern(template string) (*Pattern, error) {
	for _, p := range []string{"{x}", "{y}", "{z}"} {
		if !strings.Contains(template, p) {
			return nil, fmt.Errorf("%w: placeholder %v not found", ErrInvalidPattern, p)
		}
	}
	expr := regexp.QuoteMeta(template)
	expr = strings.ReplaceAll(expr, `\{x\}`, `(?P<x>\d+)`)
	expr = strings.ReplaceAll(expr, `\{y\}`, `(?P<y>\d+)`)
	expr = strings.ReplaceAll(expr, `\{z\}`, `(?P<z>\d+)`)
	re, err := regexp.Compile("^" + expr + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}
	return &Pattern{template: template, re: re}, nil
}

func (p *Pattern) String() string { return p.template }

// Match returns the tile address of a URI, or false when the URI does not follow the pattern.
func (p *Pattern) Match(uri string) (pmtiles.TileID, bool) {
	m := p.re.FindStringSubmatch(uri)
	if m == nil {
		return pmtiles.TileID{}, false
	}
	x, errX := strconv.ParseUint(m[p.re.SubexpIndex("x")], 10, 32)
	y, errY := strconv.ParseUint(m[p.re.SubexpIndex("y")], 10, 32)
	z, errZ := strconv.ParseUint(m[p.re.SubexpIndex("z")], 10, 32)
	if errX != nil || errY != nil || errZ != nil {
		return pmtiles.TileID{}, false
	}
	id := pmtiles.TileID{X: uint32(x), Y: uint32(y), Z: uint32(z)}
	return id, id.Valid()
}

// Format returns the URI of a tile address.
func (p *Pattern) Format(id pmtiles.TileID) string {
	result := p.template
	result = strings.ReplaceAll(result, "{x}", strconv.FormatUint(uint64(id.X), 10))
	result = strings.ReplaceAll(result, "{y}", strconv.FormatUint(uint64(id.Y), 10))
	result = strings.ReplaceAll(result, "{z}", strconv.FormatUint(uint64(id.Z), 10))
	return result
}
