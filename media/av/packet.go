package av

import (
	"time"
)

// FLV tag types carried in the first byte of a Packet.
const (
	FLV_TAG_AUDIO      = 8
	FLV_TAG_VIDEO      = 9
	FLV_TAG_SCRIPTDATA = 18
)

// Packet is one muxed FLV buffer: usually a whole tag (11-byte header, body,
// 4-byte trailer), sometimes the file header produced before the first tag.
type Packet struct {
	Data []byte
	Time time.Duration // media time
}

// DataType returns the FLV tag type byte, or 0 for an empty packet.
func (p Packet) DataType() uint8 {
	if len(p.Data) == 0 {
		return 0
	}
	return p.Data[0]
}

func (p Packet) IsVideo() bool {
	return p.DataType() == FLV_TAG_VIDEO
}

func (p Packet) IsAudio() bool {
	return p.DataType() == FLV_TAG_AUDIO
}

func (p Packet) IsScriptData() bool {
	return p.DataType() == FLV_TAG_SCRIPTDATA
}

// IsKeyFrame reports whether a video tag carries a key frame.
func (p Packet) IsKeyFrame() bool {
	// frame type is the high nibble of the first body byte
	return p.IsVideo() && len(p.Data) > 11 && p.Data[11]>>4 == 1
}

// Clone returns a packet owning a copy of the payload.
func (p Packet) Clone() Packet {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return Packet{Data: data, Time: p.Time}
}

type PacketReader interface {
	ReadPacket() (Packet, error)
}

type PacketWriter interface {
	WritePacket(Packet) error
}
