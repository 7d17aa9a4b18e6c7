package sink

import "github.com/bugVanisher/rtmpsink/media/av"

type metadataKind int

const (
	metadataSession metadataKind = iota
	metadataVideo
	metadataAudio
	metadataKinds
)

var metadataTagTypes = [metadataKinds]uint8{
	metadataSession: av.FLV_TAG_SCRIPTDATA,
	metadataVideo:   av.FLV_TAG_VIDEO,
	metadataAudio:   av.FLV_TAG_AUDIO,
}

func (k metadataKind) String() string {
	switch k {
	case metadataSession:
		return "session"
	case metadataVideo:
		return "video"
	case metadataAudio:
		return "audio"
	}
	return "unknown"
}

// metadataCache 保存连接后看到的第一个script/video/audio packet, 重连后按固定顺序重发
type metadataCache struct {
	slots [metadataKinds]*av.Packet
}

// observe 每个packet最多填一个槽位, 已保存的类型忽略
func (m *metadataCache) observe(pkt av.Packet) (metadataKind, bool) {
	typ := pkt.DataType()
	for kind := metadataSession; kind < metadataKinds; kind++ {
		if m.slots[kind] == nil && typ == metadataTagTypes[kind] {
			c := pkt.Clone()
			m.slots[kind] = &c
			return kind, true
		}
	}
	return 0, false
}

func (m *metadataCache) captured(kind metadataKind) bool {
	return m.slots[kind] != nil
}

// replay 按session, video, audio顺序写出已保存的packet, 返回最后一次写的结果.
// 遇到失败立即返回; 没有任何保存时wrote为false.
func (m *metadataCache) replay(write func([]byte) writeOutcome) (out writeOutcome, wrote bool) {
	for _, pkt := range m.slots {
		if pkt == nil {
			continue
		}
		wrote = true
		if out = write(pkt.Data); out != writeOK {
			return
		}
	}
	return
}

func (m *metadataCache) reset() {
	m.slots = [metadataKinds]*av.Packet{}
}
