package sink

import "github.com/bugVanisher/rtmpsink/media/av"

// joiner 重连后缓存第一个packet, 与下一个packet合并后再发送
type joiner struct {
	cache *av.Packet
}

func (j *joiner) hold(pkt av.Packet) {
	c := pkt.Clone()
	j.cache = &c
}

func (j *joiner) holding() bool {
	return j.cache != nil
}

// join 返回cache+pkt, 时间取pkt的; 没有缓存时原样返回
func (j *joiner) join(pkt av.Packet) av.Packet {
	if j.cache == nil {
		return pkt
	}
	data := make([]byte, 0, len(j.cache.Data)+len(pkt.Data))
	data = append(data, j.cache.Data...)
	data = append(data, pkt.Data...)
	j.cache = nil
	return av.Packet{Data: data, Time: pkt.Time}
}

func (j *joiner) reset() {
	j.cache = nil
}
