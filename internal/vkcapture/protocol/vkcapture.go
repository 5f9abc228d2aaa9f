package protocol

import (
	"encoding/binary"
)

// Message sizes on the wire
const (
	HandshakeSize      = 32
	SurfaceMessageSize = 128
)

// Message types
const (
	MsgTypeHandshake   = uint8(1)
	MsgTypeTextureData = uint8(11)
)

// MaxPlanes is the number of per-plane entries carried in a surface message.
const MaxPlanes = 4

// Field offsets inside the packed little-endian surface message.
const (
	offType        = 0
	offVersion     = 1
	offWidth       = 2
	offHeight      = 6
	offPixelFormat = 10
	offPlaneA      = 14
	offPlaneB      = offPlaneA + 4*MaxPlanes
	offModifier    = offPlaneB + 4*MaxPlanes
	offDrmFormat   = offModifier + 8
	offPlaneCount  = offDrmFormat + 4
	offFlags       = offPlaneCount + 1
	offReserved    = offFlags + 4
)

// ReservedSize is the trailing padding of a surface message.
const ReservedSize = SurfaceMessageSize - offReserved

// SurfaceDescriptor describes a producer surface announced over the socket.
type SurfaceDescriptor struct {
	Type        uint8
	Version     uint8
	Width       int32
	Height      int32
	PixelFormat int32
	// PlaneA holds per-plane strides, PlaneB per-plane offsets. Only the
	// first stride is consulted.
	PlaneA     [MaxPlanes]int32
	PlaneB     [MaxPlanes]int32
	Modifier   uint64
	DrmFormat  uint32
	PlaneCount uint8
	Flags      uint32
}

// Geometry is the part of a descriptor the consumer acts on.
type Geometry struct {
	Width  int32
	Height int32
	Stride int32
}

// Geometry returns the single-plane geometry of the surface.
func (d SurfaceDescriptor) Geometry() Geometry {
	return Geometry{
		Width:  d.Width,
		Height: d.Height,
		Stride: d.PlaneA[0],
	}
}

// ByteLength returns stride*height, the number of bytes a reader needs.
func (g Geometry) ByteLength() int64 {
	return int64(g.Stride) * int64(g.Height)
}

// EncodeHandshake builds the consumer hello sent right after accept.
func EncodeHandshake() [HandshakeSize]byte {
	var buf [HandshakeSize]byte
	buf[0] = MsgTypeHandshake
	buf[1] = 0 // version
	buf[2] = 1
	buf[3] = 1
	// 16 reserved bytes and 12 bytes of padding stay zero
	return buf
}

// DecodeSurfaceMessage unpacks a texture-data message. It reports false for
// any input that is not exactly one texture-data message; producers may send
// message types this consumer does not understand.
func DecodeSurfaceMessage(b []byte) (SurfaceDescriptor, bool) {
	if len(b) != SurfaceMessageSize || b[offType] != MsgTypeTextureData {
		return SurfaceDescriptor{}, false
	}

	le := binary.LittleEndian
	d := SurfaceDescriptor{
		Type:        b[offType],
		Version:     b[offVersion],
		Width:       int32(le.Uint32(b[offWidth:])),
		Height:      int32(le.Uint32(b[offHeight:])),
		PixelFormat: int32(le.Uint32(b[offPixelFormat:])),
		Modifier:    le.Uint64(b[offModifier:]),
		DrmFormat:   le.Uint32(b[offDrmFormat:]),
		PlaneCount:  b[offPlaneCount],
		Flags:       le.Uint32(b[offFlags:]),
	}
	for i := 0; i < MaxPlanes; i++ {
		d.PlaneA[i] = int32(le.Uint32(b[offPlaneA+4*i:]))
		d.PlaneB[i] = int32(le.Uint32(b[offPlaneB+4*i:]))
	}
	return d, true
}

// EncodeSurfaceMessage is the producer side of DecodeSurfaceMessage. The
// receiver never sends it; it exists for test producers and tooling.
func EncodeSurfaceMessage(d SurfaceDescriptor) []byte {
	b := make([]byte, SurfaceMessageSize)
	le := binary.LittleEndian

	b[offType] = d.Type
	b[offVersion] = d.Version
	le.PutUint32(b[offWidth:], uint32(d.Width))
	le.PutUint32(b[offHeight:], uint32(d.Height))
	le.PutUint32(b[offPixelFormat:], uint32(d.PixelFormat))
	for i := 0; i < MaxPlanes; i++ {
		le.PutUint32(b[offPlaneA+4*i:], uint32(d.PlaneA[i]))
		le.PutUint32(b[offPlaneB+4*i:], uint32(d.PlaneB[i]))
	}
	le.PutUint64(b[offModifier:], d.Modifier)
	le.PutUint32(b[offDrmFormat:], d.DrmFormat)
	b[offPlaneCount] = d.PlaneCount
	le.PutUint32(b[offFlags:], d.Flags)
	return b
}
