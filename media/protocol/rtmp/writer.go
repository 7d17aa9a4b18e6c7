package rtmp

import (
	"bytes"

	"github.com/nareix/joy4/format/flv/flvio"
	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/pkg/errors"
)

const (
	flvFileHeaderLength = 9
	tagTrailerLength    = 4
)

var setDataFrame = func() []byte {
	b := make([]byte, flvio.LenAMF0Val("@setDataFrame"))
	flvio.FillAMF0Val(b, "@setDataFrame")
	return b
}()

// pendingTag 跨Write调用拼接的flv tag
type pendingTag struct {
	active  bool
	typ     uint8
	ts      int32
	datalen int
	body    []byte
}

func (t *pendingTag) begin(b []byte) error {
	tag, ts, datalen, err := flvio.ParseTagHeader(b)
	if err != nil {
		return errors.Wrap(ErrInvalidTag, err.Error())
	}
	switch tag.Type {
	case flvio.TAG_AUDIO, flvio.TAG_VIDEO, flvio.TAG_SCRIPTDATA:
	default:
		return errors.Wrapf(ErrInvalidTag, "type=%d", tag.Type)
	}
	t.active = true
	t.typ = tag.Type
	t.ts = ts
	t.datalen = datalen
	t.body = make([]byte, 0, datalen)
	return nil
}

// fill 追加body数据, 返回未消费的部分
func (t *pendingTag) fill(b []byte) []byte {
	need := t.datalen - len(t.body)
	if need > len(b) {
		need = len(b)
	}
	t.body = append(t.body, b[:need]...)
	return b[need:]
}

func (t *pendingTag) complete() bool {
	return t.active && len(t.body) == t.datalen
}

func (t *pendingTag) reset() {
	*t = pendingTag{}
}

func fileHeaderSkip(b []byte) int {
	offset := int(pio.U32BE(b[5:9]))
	if offset < flvFileHeaderLength {
		offset = flvFileHeaderLength
	}
	return offset + tagTrailerLength
}

// Write 写入flv字节流, 一次调用可以包含多个tag, 也可以只包含tag的一部分.
// 每个tag开头需要至少11字节, 否则返回ErrPacketTooSmall; 发送失败时连接被关闭.
func (self *conn) Write(b []byte) (n int, err error) {
	if !self.IsConnected() {
		return 0, ErrNotConnected
	}
	if len(b) == 0 {
		return 0, ErrPacketTooSmall
	}

	size := len(b)
	for len(b) > 0 {
		if self.wskip > 0 {
			k := self.wskip
			if k > len(b) {
				k = len(b)
			}
			b = b[k:]
			self.wskip -= k
			continue
		}

		if !self.wtag.active {
			if len(b) < flvio.TagHeaderLength {
				return 0, ErrPacketTooSmall
			}
			if b[0] == 'F' && b[1] == 'L' && b[2] == 'V' {
				self.wskip = fileHeaderSkip(b)
				continue
			}
			if err = self.wtag.begin(b); err != nil {
				return 0, err
			}
			b = b[flvio.TagHeaderLength:]
		}

		b = self.wtag.fill(b)
		if self.wtag.complete() {
			err = self.writeTag(&self.wtag)
			self.wtag.reset()
			if err != nil {
				self.logger.Warn().Err(err).Msg("[rtmp] send tag failed, close connection")
				self.closeNetConn()
				return 0, err
			}
			self.wskip = tagTrailerLength
		}
	}

	if err = self.flushWrite(); err != nil {
		self.logger.Warn().Err(err).Msg("[rtmp] flush failed, close connection")
		self.closeNetConn()
		return 0, err
	}
	return size, nil
}

func (self *conn) writeTag(tag *pendingTag) (err error) {
	var msgtypeid uint8
	var csid uint32
	var prefix []byte

	switch tag.typ {
	case flvio.TAG_AUDIO:
		msgtypeid = msgtypeidAudioMsg
		csid = 6
	case flvio.TAG_VIDEO:
		msgtypeid = msgtypeidVideoMsg
		csid = 7
	case flvio.TAG_SCRIPTDATA:
		msgtypeid = msgtypeidDataMsgAMF0
		csid = 5
		if !bytes.HasPrefix(tag.body, setDataFrame) {
			prefix = setDataFrame
		}
	}

	msglen := len(prefix) + len(tag.body)
	if msglen > self.writeMaxChunkSize {
		if err = self.writeSetChunkSize(msglen); err != nil {
			return
		}
	}

	actualChunkHeaderLength := chunkHeaderLength
	if uint32(tag.ts) > FlvTimestampMax {
		actualChunkHeaderLength += 4
	}
	b := self.tmpwbuf(actualChunkHeaderLength)
	hdrlen := self.fillChunkHeader(b, csid, tag.ts, msgtypeid, self.avmsgsid, msglen)

	self.setDeadline()
	if _, err = self.bufw.Write(b[:hdrlen]); err != nil {
		return
	}
	if len(prefix) > 0 {
		if _, err = self.bufw.Write(prefix); err != nil {
			return
		}
	}
	if _, err = self.bufw.Write(tag.body); err != nil {
		return
	}

	self.debug("send tag headertype=0 csid=%d ts=%d msglen=%d msgtypeid=%d msgsid=%d", csid, tag.ts, msglen, msgtypeid, self.avmsgsid)
	return
}
