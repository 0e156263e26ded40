package frame

import (
	"image"
)

// PrimaryChannel is the channel name carrying the video stream being
// deduplicated. Any other channel is treated as upstream passthrough data.
const PrimaryChannel = "main"

// DedupedChannel is the side channel carrying dedup decision metadata when
// forwarding is enabled.
const DedupedChannel = "deduped"

// Frame is one decoded video frame plus whatever metadata upstream stages
// attached to it. Frames are produced upstream and are read-only here; stages
// that want to attach metadata work on a copy of Data.
type Frame struct {
	Image  image.Image
	Format string // pixel/colorspace tag, e.g. "BGR", "RGB"
	Data   map[string]any
}

// New returns a frame wrapping img with an empty metadata map.
func New(img image.Image, format string) *Frame {
	return &Frame{
		Image:  img,
		Format: format,
		Data:   map[string]any{},
	}
}

// CloneData returns a shallow copy of the frame's metadata map, so callers
// can attach keys without mutating the upstream frame.
func (f *Frame) CloneData() map[string]any {
	data := make(map[string]any, len(f.Data))
	for k, v := range f.Data {
		data[k] = v
	}
	return data
}

// Channel is one named entry in an ordered channel set.
type Channel struct {
	Name  string
	Frame *Frame
}

// Channels is an ordered set of named frames moving through the pipeline
// together. Order matters on output: the primary channel always comes first.
type Channels []Channel

// Get returns the frame for name, or nil if the channel is absent.
func (c Channels) Get(name string) *Frame {
	for _, ch := range c {
		if ch.Name == name {
			return ch.Frame
		}
	}
	return nil
}

// Primary returns the primary video frame, or nil if the call carries none.
func (c Channels) Primary() *Frame {
	return c.Get(PrimaryChannel)
}
