package render

import (
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Context is the host's primary rendering context. Loaders ask it for secondary
// contexts that share resources with it and can be used from another goroutine.
type Context interface {
	// NewSecondary creates a context bound to the calling worker.
	NewSecondary() (gpucontext.DeviceProvider, error)
}

// Poller is implemented by devices that can wait for submitted work.
// gpucontext.Device is a type token, so the barrier type-asserts to it.
type Poller interface {
	Poll(wait bool)
}

// Destroyer is implemented by devices owned by a secondary context.
type Destroyer interface {
	Destroy()
}

// Sync blocks until all GPU work submitted through the context has completed.
// Devices that do not implement Poller are treated as synchronous.
func Sync(dp gpucontext.DeviceProvider) {
	if dp == nil {
		return
	}
	if d, ok := dp.Device().(Poller); ok {
		d.Poll(true)
	}
}

// Destroy releases the device owned by a secondary context.
func Destroy(dp gpucontext.DeviceProvider) {
	if dp == nil {
		return
	}
	if d, ok := dp.Device().(Destroyer); ok {
		d.Destroy()
	}
}

// NullContext provides device-less secondary contexts for headless use.
type NullContext struct{}

func (NullContext) NewSecondary() (gpucontext.DeviceProvider, error) {
	return nullProvider{}, nil
}

type nullProvider struct{}

func (nullProvider) Device() gpucontext.Device   { return nil }
func (nullProvider) Queue() gpucontext.Queue     { return nil }
func (nullProvider) Adapter() gpucontext.Adapter { return nil }

func (nullProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

func (nullProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "null", Type: gpucontext.AdapterTypeSoftware}
}
