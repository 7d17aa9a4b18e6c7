package sink

import (
	"testing"
	"time"

	"github.com/bugVanisher/rtmpsink/media/av"
	"github.com/stretchr/testify/require"
)

func tagPacket(typ uint8, ts time.Duration, payload ...byte) av.Packet {
	return av.Packet{Data: append([]byte{typ}, payload...), Time: ts}
}

func TestMetadataCache_ObserveOnce(t *testing.T) {
	var m metadataCache

	first := tagPacket(av.FLV_TAG_VIDEO, 0, 0x17, 0x00)
	kind, ok := m.observe(first)
	require.True(t, ok)
	require.Equal(t, metadataVideo, kind)

	_, ok = m.observe(tagPacket(av.FLV_TAG_VIDEO, time.Second, 0x17, 0x01))
	require.False(t, ok)
	_, ok = m.observe(av.Packet{})
	require.False(t, ok)
	_, ok = m.observe(av.Packet{Data: []byte("FLV")})
	require.False(t, ok)

	first.Data[1] = 0xff
	require.Equal(t, []byte{av.FLV_TAG_VIDEO, 0x17, 0x00}, m.slots[metadataVideo].Data)
	require.True(t, m.captured(metadataVideo))
	require.False(t, m.captured(metadataAudio))
	require.False(t, m.captured(metadataSession))
}

func TestMetadataCache_ReplayOrder(t *testing.T) {
	var m metadataCache
	m.observe(tagPacket(av.FLV_TAG_AUDIO, 0, 'a'))
	m.observe(tagPacket(av.FLV_TAG_VIDEO, 0, 'v'))
	m.observe(tagPacket(av.FLV_TAG_SCRIPTDATA, 0, 's'))
	m.observe(tagPacket(av.FLV_TAG_AUDIO, 0, 'x'))

	var written [][]byte
	out, wrote := m.replay(func(b []byte) writeOutcome {
		written = append(written, b)
		return writeOK
	})
	require.True(t, wrote)
	require.Equal(t, writeOK, out)
	require.Equal(t, [][]byte{
		{av.FLV_TAG_SCRIPTDATA, 's'},
		{av.FLV_TAG_VIDEO, 'v'},
		{av.FLV_TAG_AUDIO, 'a'},
	}, written)
}

func TestMetadataCache_ReplayStopsOnFailure(t *testing.T) {
	var m metadataCache
	m.observe(tagPacket(av.FLV_TAG_SCRIPTDATA, 0, 's'))
	m.observe(tagPacket(av.FLV_TAG_AUDIO, 0, 'a'))

	calls := 0
	out, wrote := m.replay(func(b []byte) writeOutcome {
		calls++
		return writeFailed
	})
	require.True(t, wrote)
	require.Equal(t, writeFailed, out)
	require.Equal(t, 1, calls)
}

func TestMetadataCache_ReplayEmpty(t *testing.T) {
	var m metadataCache
	_, wrote := m.replay(func(b []byte) writeOutcome {
		t.Fatal("nothing to replay")
		return writeOK
	})
	require.False(t, wrote)

	m.observe(tagPacket(av.FLV_TAG_AUDIO, 0, 'a'))
	m.reset()
	require.False(t, m.captured(metadataAudio))
}

func TestJoiner(t *testing.T) {
	var j joiner
	b := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'b')
	require.Equal(t, b, j.join(b))

	a := tagPacket(av.FLV_TAG_SCRIPTDATA, 0, 'a')
	j.hold(a)
	a.Data[1] = 'z'
	require.True(t, j.holding())

	joined := j.join(b)
	require.Equal(t, []byte{av.FLV_TAG_SCRIPTDATA, 'a', av.FLV_TAG_VIDEO, 'b'}, joined.Data)
	require.Equal(t, b.Time, joined.Time)
	require.False(t, j.holding())

	j.hold(a)
	j.reset()
	require.False(t, j.holding())
}
