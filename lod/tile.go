package lod

import (
	"github.com/eak1mov/go-tiles3d/content"
	"github.com/eak1mov/go-tiles3d/loader"
	"github.com/eak1mov/go-tiles3d/render"
	"github.com/eak1mov/go-tiles3d/tileset"
	"github.com/eak1mov/go-tiles3d/volume"
	"github.com/go-gl/mathgl/mgl64"
)

// Tile is the runtime state of a tileset node: its world volume, the children
// expanded so far, its content and the job loading it.
type Tile struct {
	root *Root
	node *tileset.Node

	world  mgl64.Mat4
	volume volume.Volume
	viewer volume.Volume

	children []*Tile
	content  *content.Content
	job      *loader.Job
}

func newTile(r *Root, node *tileset.Node, parent *Tile) *Tile {
	local, _ := node.Transform()
	world := local
	if parent != nil {
		world = parent.world.Mul4(local)
	}
	t := &Tile{
		root:   r,
		node:   node,
		world:  world,
		volume: node.Volume().Transform(world),
	}
	if v := node.ViewerRequestVolume(); v != nil {
		t.viewer = v.Transform(world)
	}
	return t
}

func (t *Tile) Node() *tileset.Node { return t.node }

// Volume returns the bounding volume in world coordinates.
func (t *Tile) Volume() volume.Volume { return t.volume }

// Children returns the expanded children, or nil when the tile has not been
// expanded since its last release.
func (t *Tile) Children() []*Tile { return t.children }

func (t *Tile) Content() *content.Content { return t.content }

// Loading reports whether a content load is in flight.
func (t *Tile) Loading() bool { return t.job != nil }

// bounds returns the centroid and radius in the frame of the projection.
func (t *Tile) bounds(state *render.State) (mgl64.Vec3, float64) {
	if state.Projection() == render.ProjectionFlat {
		return t.volume.FlatCenter(), t.volume.Radius() * t.volume.Padding()
	}
	return t.volume.Center(), t.volume.Radius()
}

// accept runs the cheap size reject and the visibility cull, releasing the
// subtree of a rejected tile.
func (t *Tile) accept(state *render.State, mandatory bool) bool {
	r := t.root
	_, radius := t.bounds(state)
	if !mandatory && 2*radius/state.NominalGSD() < r.config.RejectThreshold {
		r.stats.Rejected++
		t.release()
		return false
	}
	if !t.visible(state) {
		r.stats.Culled++
		t.release()
		return false
	}
	return true
}

func (t *Tile) visible(state *render.State) bool {
	if t.viewer != nil && !insideViewer(state, t.viewer) {
		return false
	}
	if state.Projection() == render.ProjectionFlat {
		lo, hi := t.volume.FlatBounds()
		if p := t.volume.Padding(); p != 1 {
			c := t.volume.FlatCenter()
			lo[0], hi[0] = c[0]-(c[0]-lo[0])*p, c[0]+(hi[0]-c[0])*p
		}
		return state.Frustum().IntersectsAABB(lo, hi)
	}
	return state.Frustum().IntersectsSphere(t.volume.Center(), t.volume.Radius())
}

func insideViewer(state *render.State, v volume.Volume) bool {
	p := state.Position()
	if state.Projection() == render.ProjectionFlat {
		lo, hi := v.FlatBounds()
		return p[0] >= lo[0] && p[0] <= hi[0] && p[1] >= lo[1] && p[1] <= hi[1] && p[2] >= lo[2] && p[2] <= hi[2]
	}
	return volume.Contains(v, p)
}

func (t *Tile) draw(state *render.State, mandatory bool) bool {
	if !t.accept(state, mandatory) {
		return false
	}
	return t.drawVisible(state)
}

// drawVisible handles a tile that passed the cull and reports whether it or
// any of its descendants drew content.
func (t *Tile) drawVisible(state *render.State) bool {
	r := t.root
	r.stats.Visited++

	center, radius := t.bounds(state)
	mpp := MetersPerPixel(state, center, radius, r.config.InsideMetersPerPixel)
	if 2*radius/mpp < r.config.RejectThreshold {
		r.stats.Rejected++
		t.release()
		return false
	}

	t.poll()

	drawSelf, drewChildren := true, false
	if t.external() || ScreenSpaceError(t.node.GeometricError(), mpp) > r.config.MaxScreenSpaceError {
		r.stats.Refined++
		t.expand()

		mandatory := t.node.Refine() == tileset.RefineReplace
		visible, drawn := 0, 0
		for _, child := range t.children {
			if !child.accept(state, mandatory) {
				continue
			}
			visible++
			if child.drawVisible(state) {
				drawn++
			}
		}
		drewChildren = drawn > 0
		if mandatory {
			drawSelf = visible == 0 || drawn < visible
		}
	} else {
		t.releaseChildren()
	}

	drewSelf := false
	if drawSelf {
		drewSelf = t.drawContent(state)
	}
	return drewSelf || drewChildren
}

// external reports whether the content is a nested tileset, whose root is
// drawn as the child of this tile.
func (t *Tile) external() bool {
	return t.content != nil && t.content.Tileset() != nil
}

func (t *Tile) expand() {
	if t.children != nil {
		return
	}
	nodes := t.node.Children()
	t.children = make([]*Tile, 0, len(nodes)+1)
	for _, node := range nodes {
		t.children = append(t.children, newTile(t.root, node, t))
	}
	if t.external() {
		t.children = append(t.children, newTile(t.root, t.content.Tileset().Root, t))
	}
}

// poll takes over the result of a finished job without blocking.
func (t *Tile) poll() {
	if t.job == nil || !t.job.Done() {
		return
	}
	r := t.root
	c := t.job.Reclaim()
	canceled := t.job.Canceled()
	t.job = nil
	if c == nil {
		return
	}
	if canceled {
		c.Release()
		return
	}

	now := r.config.Clock()
	c.Stamp(now)
	if t.content != nil {
		t.content.Release()
	}
	t.content = c

	switch c.State() {
	case content.StateFailed:
		r.stats.Failed++
		r.failures[c.URI()] = now
		r.config.Logger.Warn("tiles3d: content failed", "uri", c.URI(), "error", c.Err())
	default:
		r.stats.Loaded++
		delete(r.failures, c.URI())
		if c.Tileset() != nil {
			// rebuilt on the next expansion with the external root
			t.releaseChildren()
		}
	}
}

func (t *Tile) drawContent(state *render.State) bool {
	if !t.node.HasContent() {
		return false
	}
	r := t.root
	if t.job == nil && t.needsLoad() {
		t.dispatch()
	}
	if t.content == nil || t.content.State() != content.StateLoaded {
		return false
	}
	if !t.content.Draw(state) {
		return false
	}
	r.stats.Drawn++
	return true
}

func (t *Tile) needsLoad() bool {
	uri := t.node.ContentURI()
	switch {
	case t.content == nil:
		return t.root.retryAllowed(uri, t.root.config.Clock())
	case t.content.State() == content.StateFailed:
		return t.root.retryAllowed(uri, t.root.config.Clock())
	}
	return false
}

func (t *Tile) dispatch() {
	r := t.root
	now := r.config.Clock()
	if !r.allowDispatch(now) {
		r.stats.Throttled++
		return
	}

	uri := t.node.ContentURI()
	req := content.Request{URI: uri, Refine: t.node.Refine()}
	src, dec := r.src, r.dec
	job := r.mgr.TrySubmit(uri, func(ctx loader.JobContext) (*content.Content, error) {
		return content.Load(ctx, src, dec, req)
	})
	if job == nil {
		// every worker queue is full
		r.stats.Throttled++
		return
	}
	t.job = job
	if t.content == nil {
		t.content = content.NewLoading(uri)
		t.content.Stamp(now)
	}
	r.stats.Dispatched++
	r.config.Logger.Debug("tiles3d: content dispatched", "uri", uri, "depth", t.node.Depth())
}

// release abandons the in-flight job, frees the content and releases the
// subtree. A later expansion starts from fresh tiles.
func (t *Tile) release() {
	if t.job != nil {
		t.root.abandon(t.job)
		t.job = nil
	}
	if t.content != nil {
		t.content.Release()
		t.content = nil
		t.root.stats.Released++
	}
	t.releaseChildren()
}

func (t *Tile) releaseChildren() {
	for _, child := range t.children {
		child.release()
	}
	t.children = nil
}
