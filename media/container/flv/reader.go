package flv

import (
	"bufio"
	"fmt"
	"io"

	"github.com/bugVanisher/rtmpsink/media/av"
	"github.com/bugVanisher/rtmpsink/utils"
	"github.com/nareix/joy4/format/flv/flvio"
	"github.com/nareix/joy4/utils/bits/pio"
)

const (
	fileHeaderLength = 9
	tagTrailerLength = 4
)

// Reader splits an FLV byte stream into packets the way a muxer hands them
// downstream: the file header (with the first previous-tag-size) first, then
// one packet per tag including its trailer.
type Reader struct {
	r          *bufio.Reader
	headerDone bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		r: bufio.NewReaderSize(r, pio.RecommendBufioSize),
	}
}

func (self *Reader) readFileHeader() (pkt av.Packet, err error) {
	b := make([]byte, fileHeaderLength)
	if _, err = io.ReadFull(self.r, b); err != nil {
		return
	}
	if pio.U24BE(b[0:3]) != 0x464c56 { // 'FLV'
		err = fmt.Errorf("flv: file header cc3 invalid")
		return
	}
	offset := int(pio.U32BE(b[5:9]))
	if offset < fileHeaderLength {
		err = fmt.Errorf("flv: file header offset=%d invalid", offset)
		return
	}
	extra := make([]byte, offset-fileHeaderLength+tagTrailerLength)
	if _, err = io.ReadFull(self.r, extra); err != nil {
		return
	}
	pkt.Data = append(b, extra...)
	self.headerDone = true
	return
}

// ReadPacket returns io.EOF once the stream ends on a tag boundary.
func (self *Reader) ReadPacket() (pkt av.Packet, err error) {
	if !self.headerDone {
		return self.readFileHeader()
	}

	hdr := make([]byte, flvio.TagHeaderLength)
	if _, err = io.ReadFull(self.r, hdr); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = fmt.Errorf("flv: truncated tag header")
		}
		return
	}

	var ts int32
	var datalen int
	if _, ts, datalen, err = flvio.ParseTagHeader(hdr); err != nil {
		return
	}

	data := make([]byte, flvio.TagHeaderLength+datalen+tagTrailerLength)
	copy(data, hdr)
	if _, err = io.ReadFull(self.r, data[flvio.TagHeaderLength:]); err != nil {
		err = fmt.Errorf("flv: truncated tag body: %s", err.Error())
		return
	}

	pkt.Data = data
	pkt.Time = utils.TsToTime(ts)
	return
}
