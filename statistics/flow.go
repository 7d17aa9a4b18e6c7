package statistics

import (
	"sync"
	"time"

	"github.com/bugVanisher/rtmpsink/media/av"
)

const StatInterval = 3 * time.Second

// Flow 推流统计, sink在发送/丢弃/事件时调用, 统计协程周期性读取Snapshot
type Flow struct {
	mu sync.Mutex

	VideoBitrate  *Bitrate
	AudioBitrate  *Bitrate
	VideoFPS      *FPS
	AudioFPS      *FPS
	VideoGop      *Gop
	VideoDelay    *Delay
	VideoDuration *Duration
	AudioDuration *Duration

	sentPackets    uint64
	sentBytes      uint64
	droppedPackets uint64
	events         map[string]uint64
}

// NewFlow 创建Flow实例
func NewFlow() *Flow {
	return &Flow{
		VideoBitrate:  NewBitrate(),
		AudioBitrate:  NewBitrate(),
		VideoFPS:      NewFPS(),
		AudioFPS:      NewFPS(),
		VideoGop:      NewGop(),
		VideoDelay:    NewDelay(),
		VideoDuration: NewDuration(),
		AudioDuration: NewDuration(),
		events:        map[string]uint64{},
	}
}

// Sent 统计成功写出的packet
func (f *Flow) Sent(pkt av.Packet) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sentPackets++
	f.sentBytes += uint64(len(pkt.Data))
	switch {
	case pkt.IsVideo():
		f.VideoBitrate.AddBytes(len(pkt.Data))
		f.VideoFPS.Add()
		f.VideoGop.Add(pkt)
		f.VideoDelay.Add(pkt.Time)
		f.VideoDuration.Add(pkt.Time)
	case pkt.IsAudio():
		f.AudioBitrate.AddBytes(len(pkt.Data))
		f.AudioFPS.Add()
		f.AudioDuration.Add(pkt.Time)
	}
}

// Dropped 统计断线期间被丢弃的packet
func (f *Flow) Dropped(pkt av.Packet) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.droppedPackets++
	f.mu.Unlock()
}

// Event 按名称统计连接事件
func (f *Flow) Event(kind string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.events[kind]++
	f.mu.Unlock()
}

// Snapshot 读取当前统计, 会清空Duration的累计值
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := make(map[string]uint64, len(f.events))
	for k, v := range f.events {
		events[k] = v
	}
	return Snapshot{
		VideoBitrate:   f.VideoBitrate.GetBitrate(),
		AudioBitrate:   f.AudioBitrate.GetBitrate(),
		VideoFPS:       f.VideoFPS.GetFPS(),
		AudioFPS:       f.AudioFPS.GetFPS(),
		VideoGop:       f.VideoGop.GetGop(),
		VideoDelay:     f.VideoDelay.GetDelay(),
		VideoDuration:  f.VideoDuration.GetDuration(),
		AudioDuration:  f.AudioDuration.GetDuration(),
		SentPackets:    f.sentPackets,
		SentBytes:      f.sentBytes,
		DroppedPackets: f.droppedPackets,
		Events:         events,
	}
}

type Snapshot struct {
	VideoBitrate   uint64            `json:"video_bitrate"`
	AudioBitrate   uint64            `json:"audio_bitrate"`
	VideoFPS       uint32            `json:"video_fps"`
	AudioFPS       uint32            `json:"audio_fps"`
	VideoGop       float64           `json:"video_gop"`
	VideoDelay     int64             `json:"video_delay"`
	VideoDuration  time.Duration     `json:"video_duration"`
	AudioDuration  time.Duration     `json:"audio_duration"`
	SentPackets    uint64            `json:"sent_packets"`
	SentBytes      uint64            `json:"sent_bytes"`
	DroppedPackets uint64            `json:"dropped_packets"`
	Events         map[string]uint64 `json:"events"`
}

// VideoDurationDelay 一个统计周期内视频时长与现实时间的diff，毫秒
func (s Snapshot) VideoDurationDelay() int64 {
	return (StatInterval - s.VideoDuration).Milliseconds()
}
