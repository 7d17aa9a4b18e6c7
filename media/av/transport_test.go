package av

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type sliceReader struct {
	pkts []Packet
}

func (r *sliceReader) ReadPacket() (Packet, error) {
	if len(r.pkts) == 0 {
		return Packet{}, io.EOF
	}
	pkt := r.pkts[0]
	r.pkts = r.pkts[1:]
	return pkt, nil
}

type sliceWriter struct {
	pkts []Packet
}

func (w *sliceWriter) WritePacket(pkt Packet) error {
	w.pkts = append(w.pkts, pkt)
	return nil
}

func TestCopyPackets(t *testing.T) {
	src := &sliceReader{pkts: []Packet{
		{Data: []byte{FLV_TAG_SCRIPTDATA, 0}, Time: 0},
		{Data: []byte{FLV_TAG_VIDEO, 0}, Time: 40 * time.Millisecond},
	}}
	dst := &sliceWriter{}
	read, written := 0, 0
	tr := NewTransport(
		WithAfterReadPacket(func(pkt *Packet) error {
			read++
			return nil
		}),
		WithAfterWritePacket(func(pkt *Packet) error {
			written++
			return nil
		}),
	)
	err := tr.CopyPackets(context.Background(), dst, src)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 2, read)
	require.Equal(t, 2, written)
	require.Equal(t, int64(2), tr.PacketCount())
	require.True(t, dst.pkts[1].IsVideo())
}

func TestCopyPacketsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewTransport().CopyPackets(ctx, &sliceWriter{}, &sliceReader{})
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)
}

func TestPacketHelpers(t *testing.T) {
	var empty Packet
	require.Equal(t, uint8(0), empty.DataType())

	key := Packet{Data: append(make([]byte, 11), 0x17, 0x01)}
	key.Data[0] = FLV_TAG_VIDEO
	require.True(t, key.IsKeyFrame())

	clone := key.Clone()
	clone.Data[0] = FLV_TAG_AUDIO
	require.True(t, key.IsVideo())
	require.True(t, clone.IsAudio())
}
