package rtmp

import (
	"bufio"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bugVanisher/rtmpsink/protocol/common"
	"github.com/nareix/joy4/format/flv/flvio"
	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	stageHandshakeDone = iota + 1
	stageCommandDone
)

type conn struct {
	URL  *URL
	info common.Info

	bufr *bufio.Reader
	bufw *bufio.Writer
	ackn uint32

	writebuf []byte
	readbuf  []byte

	netconn   net.Conn
	txrxcount *txrxcount
	rwTimeout time.Duration

	writeMaxChunkSize int
	readMaxChunkSize  int
	readAckSize       uint32
	readcsmap         map[uint32]*chunkStream

	publishing bool
	stage      int

	avmsgsid uint32
	transid  int

	gotcommand     bool
	commandname    string
	commandtransid float64
	commandobj     flvio.AMFMap
	commandparams  []interface{}

	gotmsg    bool
	timestamp uint32
	msgdata   []byte
	msgtypeid uint8
	eventtype uint16

	wtag  pendingTag
	wskip int

	debuger *Debuger
	logger  zerolog.Logger
	opts    *Options
}

type txrxcount struct {
	io.ReadWriter
	txbytes uint64
	rxbytes uint64
}

func (self *txrxcount) Read(p []byte) (int, error) {
	n, err := self.ReadWriter.Read(p)
	self.rxbytes += uint64(n)
	return n, err
}

func (self *txrxcount) Write(p []byte) (int, error) {
	n, err := self.ReadWriter.Write(p)
	self.txbytes += uint64(n)
	return n, err
}

// NewPublisher 创建推流客户端, 需要先SetupURL再Connect
func NewPublisher(opt ...Option) Publisher {
	return newConn(nil, opt...)
}

func newConn(netconn net.Conn, opt ...Option) *conn {
	conn := &conn{}

	opts := DefaultOptions
	for _, o := range opt {
		o(&opts)
	}
	conn.opts = &opts
	conn.logger = log.Logger.With().Str("module", "rtmp").Str("role", opts.RoleID).Logger().Level(opts.LogLevel.zerologLevel())
	conn.debuger = NewDebuger(opts.RoleID, opts.LogLevel, conn.logger)
	conn.writebuf = make([]byte, 4096)
	conn.readbuf = make([]byte, 4096)
	if netconn != nil {
		conn.attach(netconn)
	}
	return conn
}

// attach resets all per-connection protocol state onto a fresh net.Conn.
func (self *conn) attach(netconn net.Conn) {
	self.netconn = netconn
	self.txrxcount = &txrxcount{ReadWriter: netconn}
	self.bufr = bufio.NewReaderSize(self.txrxcount, self.opts.ReadBufferSize)
	self.bufw = bufio.NewWriterSize(self.txrxcount, self.opts.WriteBufferSize)
	self.readcsmap = make(map[uint32]*chunkStream)
	self.readMaxChunkSize = 128
	self.writeMaxChunkSize = 128
	self.readAckSize = 0
	self.ackn = 0
	self.stage = 0
	self.transid = 0
	self.avmsgsid = 0
	self.publishing = false
	self.wtag.reset()
	self.wskip = 0
}

type chunkStream struct {
	timenow     uint32
	timedelta   uint32
	hastimeext  bool
	msgsid      uint32
	msgtypeid   uint8
	msgdatalen  uint32
	msgdataleft uint32
	msghdrtype  uint8
	msgdata     []byte
}

func (self *chunkStream) Start() {
	self.msgdataleft = self.msgdatalen
	self.msgdata = make([]byte, self.msgdatalen)
}

const (
	msgtypeidUserControl      = 4
	msgtypeidAck              = 3
	msgtypeidWindowAckSize    = 5
	msgtypeidSetPeerBandwidth = 6
	msgtypeidSetChunkSize     = 1
	msgtypeidCommandMsgAMF0   = 20
	msgtypeidCommandMsgAMF3   = 17
	msgtypeidDataMsgAMF0      = 18
	msgtypeidDataMsgAMF3      = 15
	msgtypeidVideoMsg         = 9
	msgtypeidAudioMsg         = 8
)

func (self *conn) SetupURL(uri string) (err error) {
	var u *URL
	if u, err = ParseURL(uri); err != nil {
		return
	}
	if !supportedProtocols[u.Protocol] {
		return errors.Wrapf(ErrUnsupportedProtocol, "protocol=%s", u.Protocol)
	}
	self.URL = u
	self.info = u.Info()
	if u.FlashVer != "" {
		self.opts.FlashVer = u.FlashVer
	}
	self.logger = self.logger.With().Str("stream", self.info.StreamName).Logger()
	self.debuger = NewDebuger(self.info.ID, self.opts.LogLevel, self.logger)
	self.logger.Debug().Str("host", u.Host).Str("app", u.App).Str("playpath", u.PlayPath).Msg("[rtmp] setup url")
	return nil
}

func (self *conn) dial(timeout time.Duration) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: timeout}
	if self.URL.Protocol == "rtmps" {
		host, _, _ := net.SplitHostPort(self.URL.Host)
		return tls.DialWithDialer(dialer, "tcp", self.URL.Host, &tls.Config{ServerName: host})
	}
	return dialer.Dial("tcp", self.URL.Host)
}

// Connect 建立tcp连接并完成publish, timeout为0时阻塞
func (self *conn) Connect(timeout time.Duration) (err error) {
	if self.URL == nil {
		return ErrNoURL
	}
	if self.IsConnected() {
		return nil
	}

	dialTimeout := self.opts.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = timeout
	}
	self.rwTimeout = self.opts.ReadWriteTimeout
	if self.rwTimeout == 0 {
		self.rwTimeout = timeout
	}

	var netconn net.Conn
	if netconn, err = self.dial(dialTimeout); err != nil {
		return errors.Wrapf(err, "rtmp: dial %s", self.URL.Host)
	}
	self.attach(netconn)

	if err = self.HandshakeClient(); err != nil {
		self.closeNetConn()
		return
	}
	if err = self.connectPublish(); err != nil {
		self.closeNetConn()
		return
	}
	self.logger.Info().Str("remote", self.RemoteAddr()).Uint32("avmsgsid", self.avmsgsid).Msg("[rtmp] publishing")
	return nil
}

func (self *conn) IsConnected() bool {
	return self.netconn != nil && self.publishing
}

func (self *conn) NetConn() net.Conn {
	return self.netconn
}

func (self *conn) TxBytes() uint64 {
	if self.txrxcount == nil {
		return 0
	}
	return self.txrxcount.txbytes
}

func (self *conn) RxBytes() uint64 {
	if self.txrxcount == nil {
		return 0
	}
	return self.txrxcount.rxbytes
}

// Close 结束推流并关闭连接, 可重复调用
func (self *conn) Close() (err error) {
	if self.netconn == nil {
		return nil
	}
	if self.publishing {
		// > FCUnpublish() deleteStream()
		self.transid++
		_ = self.writeCommandMsg(3, self.avmsgsid, "FCUnpublish", self.transid, nil, self.URL.PlayPath)
		self.transid++
		_ = self.writeCommandMsg(3, 0, "deleteStream", self.transid, nil, self.avmsgsid)
		_ = self.flushWrite()
	}
	err = self.netconn.Close()
	self.netconn = nil
	self.publishing = false
	return
}

// closeNetConn 出错时直接断开, 不再发送任何命令
func (self *conn) closeNetConn() {
	if self.netconn != nil {
		self.netconn.Close()
	}
	self.netconn = nil
	self.publishing = false
	self.wtag.reset()
	self.wskip = 0
}

func (self *conn) setDeadline() {
	if self.rwTimeout > 0 {
		self.netconn.SetDeadline(time.Now().Add(self.rwTimeout))
	}
}

func (self *conn) pollCommand() (err error) {
	for {
		if err = self.pollMsg(); err != nil {
			return
		}
		if self.gotcommand {
			return
		}
	}
}

func (self *conn) pollMsg() (err error) {
	self.gotmsg = false
	self.gotcommand = false
	for {
		if err = self.readChunk(); err != nil {
			return
		}
		if self.gotmsg {
			return
		}
	}
}

// pollResult 等待指定transid的_result, 收到_error则失败
func (self *conn) pollResult(transid float64) (err error) {
	for {
		if err = self.pollCommand(); err != nil {
			return
		}
		if self.commandtransid != transid {
			continue
		}
		switch self.commandname {
		case "_result":
			return nil
		case "_error":
			return fmt.Errorf("rtmp: command transid=%v failed: %s", transid, statusCode(self.commandparams))
		}
	}
}

func statusCode(params []interface{}) string {
	if len(params) < 1 {
		return ""
	}
	obj, _ := params[0].(flvio.AMFMap)
	if obj == nil {
		return ""
	}
	code, _ := obj["code"].(string)
	return code
}

func (self *conn) writeBasicConf() (err error) {
	// > SetChunkSize
	if err = self.writeSetChunkSize(self.opts.ChunkSize); err != nil {
		return
	}
	// > WindowAckSize
	if err = self.writeWindowAckSize(5000000); err != nil {
		return
	}
	// > SetPeerBandwidth
	if err = self.writeSetPeerBandwidth(5000000, 2); err != nil {
		return
	}
	return
}

func (self *conn) checkConnectResult() (ok bool, errmsg string) {
	if len(self.commandparams) < 1 {
		errmsg = "checkConnectResult: params length < 1"
		return
	}

	obj, _ := self.commandparams[0].(flvio.AMFMap)
	if obj == nil {
		errmsg = "checkConnectResult: params[0] not object"
		return
	}

	code, _ := obj["code"].(string)
	if code != codeConnectSuccess {
		errmsg = "checkConnectResult: code != " + codeConnectSuccess
		return
	}

	ok = true
	return
}

func (self *conn) checkCreateStreamResult() (ok bool, avmsgsid uint32) {
	if len(self.commandparams) < 1 {
		return
	}

	ok = true
	_avmsgsid, _ := self.commandparams[0].(float64)
	avmsgsid = uint32(_avmsgsid)
	return
}

func (self *conn) checkPublishResult() error {
	code := statusCode(self.commandparams)
	if code == "" {
		return fmt.Errorf("rtmp: publish result error: code invalid")
	}
	if code != codePublishStart {
		if err, ok := codePublishErrors[code]; ok {
			return err
		}
		return fmt.Errorf("rtmp: publish result error: code == %s", code)
	}
	return nil
}

func (self *conn) writeConnect(app string) (err error) {
	if err = self.writeBasicConf(); err != nil {
		return
	}

	// > connect("app")
	self.logger.Debug().Msg(fmt.Sprintf("[rtmp] > connect('%s') host=%s", app, self.URL.Host))

	self.transid = 1
	if err = self.writeCommandMsg(3, 0, "connect", self.transid,
		flvio.AMFMap{
			"app":           app,
			"type":          "nonprivate",
			"flashVer":      self.opts.FlashVer,
			"tcUrl":         self.URL.TcURL,
			"fpad":          false,
			"capabilities":  15,
			"audioCodecs":   4071,
			"videoCodecs":   252,
			"videoFunction": 1,
		},
	); err != nil {
		return
	}

	if err = self.flushWrite(); err != nil {
		return
	}

	// < _result("NetConnection.Connect.Success")
	if err = self.pollResult(float64(self.transid)); err != nil {
		return
	}
	if ok, errmsg := self.checkConnectResult(); !ok {
		err = fmt.Errorf("rtmp: command connect failed: %s", errmsg)
		return
	}
	self.logger.Debug().Msg("[rtmp] < _result() of connect")
	return
}

func (self *conn) connectPublish() (err error) {
	playpath := self.URL.PlayPath

	if err = self.writeConnect(self.URL.App); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}

	// > releaseStream() FCPublish() createStream()
	self.logger.Debug().Msg("[rtmp] > createStream()")

	self.transid++
	if err = self.writeCommandMsg(3, 0, "releaseStream", self.transid, nil, playpath); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}
	self.transid++
	if err = self.writeCommandMsg(3, 0, "FCPublish", self.transid, nil, playpath); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}
	self.transid++
	createStreamTransid := self.transid
	if err = self.writeCommandMsg(3, 0, "createStream", self.transid, nil); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}

	if err = self.flushWrite(); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}

	// < _result(avmsgsid) of createStream
	if err = self.pollResult(float64(createStreamTransid)); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}
	var ok bool
	if ok, self.avmsgsid = self.checkCreateStreamResult(); !ok {
		err = fmt.Errorf("rtmp: createStream command failed")
		return
	}

	// > publish('playpath')
	self.logger.Debug().Msg(fmt.Sprintf("[rtmp] > publish('%s')", playpath))

	self.transid++
	if err = self.writeCommandMsg(8, self.avmsgsid, "publish", self.transid, nil, playpath, "live"); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}

	if err = self.flushWrite(); err != nil {
		err = errors.Wrap(err, "rtmp: connectPublish failed")
		return
	}

	for {
		if err = self.pollCommand(); err != nil {
			err = errors.Wrap(err, "rtmp: connectPublish failed")
			return
		}

		// < onStatus() of publish
		if self.commandname == "onStatus" {
			if err = self.checkPublishResult(); err != nil {
				return
			}
			break
		}
		if self.commandname == "_error" {
			err = fmt.Errorf("rtmp: publish failed: %s", statusCode(self.commandparams))
			return
		}
	}

	self.publishing = true
	self.stage++
	return
}

func (self *conn) tmpwbuf(n int) []byte {
	if len(self.writebuf) < n {
		self.writebuf = make([]byte, n)
	}
	return self.writebuf
}

func (self *conn) writeSetChunkSize(size int) (err error) {
	self.writeMaxChunkSize = size
	b := self.tmpwbuf(chunkHeaderLength + 4)
	n := self.fillChunkHeader(b, 2, 0, msgtypeidSetChunkSize, 0, 4)
	pio.PutU32BE(b[n:], uint32(size))
	n += 4
	self.setDeadline()
	_, err = self.bufw.Write(b[:n])
	if err != nil {
		err = fmt.Errorf("writeSetChunkSize: %s", err.Error())
		self.debug("send SetChunkSize error headertype=0 csid=2 ts=0 msglen=4 msgtypeid=%d msgsid=0 chunksize=%d %s", msgtypeidSetChunkSize, size, err.Error())
		return
	}
	self.debug("send SetChunkSize headertype=0 csid=2 ts=0 msglen=4 msgtypeid=%d msgsid=0 chunksize=%d", msgtypeidSetChunkSize, size)
	return
}

func (self *conn) writeAck(seqnum uint32) (err error) {
	b := self.tmpwbuf(chunkHeaderLength + 4)
	n := self.fillChunkHeader(b, 2, 0, msgtypeidAck, 0, 4)
	pio.PutU32BE(b[n:], seqnum)
	n += 4
	self.setDeadline()
	_, err = self.bufw.Write(b[:n])
	if err != nil {
		err = fmt.Errorf("writeAck: %s", err.Error())
		self.debug("send ack error headertype=0 csid=2 ts=0 msglen=4 msgtypeid=%d msgsid=0 seqnum=%d %s", msgtypeidAck, seqnum, err.Error())
		return
	}
	self.debug("send ack headertype=0 csid=2 ts=0 msglen=4 msgtypeid=%d msgsid=0 seqnum=%d", msgtypeidAck, seqnum)
	return
}

func (self *conn) writeWindowAckSize(size uint32) (err error) {
	b := self.tmpwbuf(chunkHeaderLength + 4)
	n := self.fillChunkHeader(b, 2, 0, msgtypeidWindowAckSize, 0, 4)
	pio.PutU32BE(b[n:], size)
	n += 4
	self.setDeadline()
	_, err = self.bufw.Write(b[:n])
	if err != nil {
		err = fmt.Errorf("writeWindowAckSize: %s", err.Error())
		self.debug("send WindowAckSize error headertype=0 csid=2 ts=0 msglen=4 msgtypeid=%d msgsid=0 acksize=%d %s", msgtypeidWindowAckSize, size, err.Error())
		return
	}
	self.debug("send WindowAckSize headertype=0 csid=2 ts=0 msglen=4 msgtypeid=%d msgsid=0 acksize=%d", msgtypeidWindowAckSize, size)
	return
}

func (self *conn) writeSetPeerBandwidth(acksize uint32, limittype uint8) (err error) {
	b := self.tmpwbuf(chunkHeaderLength + 5)
	n := self.fillChunkHeader(b, 2, 0, msgtypeidSetPeerBandwidth, 0, 5)
	pio.PutU32BE(b[n:], acksize)
	n += 4
	b[n] = limittype
	n++
	self.setDeadline()
	_, err = self.bufw.Write(b[:n])
	if err != nil {
		err = fmt.Errorf("writeSetPeerBandwidth: %s", err.Error())
		self.debug("send SetPeerBandwidth error headertype=0 csid=2 ts=0 msglen=5 typeid=%d sid=0 acksize=%d limittype=%d %s", msgtypeidSetPeerBandwidth, acksize, limittype, err.Error())
		return
	}
	self.debug("send SetPeerBandwidth headertype=0 csid=2 ts=0 msglen=5 typeid=%d sid=0 acksize=%d limittype=%d", msgtypeidSetPeerBandwidth, acksize, limittype)
	return
}

func (self *conn) writeCommandMsg(csid, msgsid uint32, args ...interface{}) (err error) {
	err = self.writeAMF0Msg(msgtypeidCommandMsgAMF0, csid, msgsid, args...)
	if err != nil {
		err = fmt.Errorf("writeCommandMsg: csid=%d msgsid=%d args=%+v err=%s ", csid, msgsid, args, err.Error())
	}
	return
}

func (self *conn) writeAMF0Msg(msgtypeid uint8, csid, msgsid uint32, args ...interface{}) (err error) {
	size := 0
	for _, arg := range args {
		size += flvio.LenAMF0Val(arg)
	}

	b := self.tmpwbuf(chunkHeaderLength + size)
	n := self.fillChunkHeader(b, csid, 0, msgtypeid, msgsid, size)
	for _, arg := range args {
		n += flvio.FillAMF0Val(b[n:], arg)
	}

	self.setDeadline()
	_, err = self.bufw.Write(b[:n])
	if err != nil {
		self.debug("send AMF0Msg error headertype=0 csid=%d ts=0 msglen=%d msgtypeid=%d msgsid=%d msg=%+v %s", csid, size, msgtypeid, msgsid, args, err.Error())
		return
	}
	self.debug("send AMF0Msg headertype=0 csid=%d ts=0 msglen=%d msgtypeid=%d msgsid=%d msg=%+v", csid, size, msgtypeid, msgsid, args)
	return
}

const chunkHeaderLength = 12
const FlvTimestampMax = 0xFFFFFF

func (self *conn) fillChunkHeader(b []byte, csid uint32, timestamp int32, msgtypeid uint8, msgsid uint32, msgdatalen int) (n int) {
	//  0                   1                   2                   3
	//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |                   timestamp                   |message length |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |     message length (cont)     |message type id| msg stream id |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	// |           message stream id (cont)            |
	// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	//
	//       Figure 9 Chunk Message Header – Type 0

	b[n] = byte(csid) & 0x3f
	n++
	if uint32(timestamp) <= FlvTimestampMax {
		pio.PutU24BE(b[n:], uint32(timestamp))
	} else {
		pio.PutU24BE(b[n:], FlvTimestampMax)
	}
	n += 3
	pio.PutU24BE(b[n:], uint32(msgdatalen))
	n += 3
	b[n] = msgtypeid
	n++
	pio.PutU32LE(b[n:], msgsid)
	n += 4
	if uint32(timestamp) > FlvTimestampMax {
		pio.PutU32BE(b[n:], uint32(timestamp))
		n += 4
	}

	return
}

func (self *conn) flushWrite() (err error) {
	self.setDeadline()
	if err = self.bufw.Flush(); err != nil {
		err = fmt.Errorf("rtmp: flushWrite: %s", err.Error())
		return
	}
	return
}

func (self *conn) readChunk() (err error) {
	b := self.readbuf
	n := 0
	self.setDeadline()
	if _, err = io.ReadFull(self.bufr, b[:1]); err != nil {
		err = fmt.Errorf("read rtmp chunk header first byte: %s", err.Error())
		self.debug("recv error %s", err.Error())
		return
	}
	header := b[0]
	n += 1

	var msghdrtype uint8
	var csid uint32

	msghdrtype = header >> 6

	csid = uint32(header) & 0x3f
	switch csid {
	default: // Chunk basic header 1
	case 0: // Chunk basic header 2
		if _, err = io.ReadFull(self.bufr, b[:1]); err != nil {
			err = fmt.Errorf("read rtmp chunk header headertype=%d csid=0: %s", msghdrtype, err.Error())
			return
		}
		n += 1
		csid = uint32(b[0]) + 64
	case 1: // Chunk basic header 3
		if _, err = io.ReadFull(self.bufr, b[:2]); err != nil {
			err = fmt.Errorf("read rtmp chunk header headertype=%d csid=1: %s", msghdrtype, err.Error())
			return
		}
		n += 2
		csid = uint32(pio.U16BE(b)) + 64
	}

	cs := self.readcsmap[csid]
	if cs == nil {
		cs = &chunkStream{}
		self.readcsmap[csid] = cs
	}

	var timestamp uint32

	switch msghdrtype {
	case 0:
		// Figure 9 Chunk Message Header – Type 0
		if cs.msgdataleft != 0 {
			err = fmt.Errorf("headertype=%d csid=%d msgdataleft=%d chunk invalid", msghdrtype, csid, cs.msgdataleft)
			return
		}
		h := b[:11]
		if _, err = io.ReadFull(self.bufr, h); err != nil {
			err = fmt.Errorf("headertype=%d csid=%d read header %s", msghdrtype, csid, err.Error())
			return
		}
		n += len(h)
		timestamp = pio.U24BE(h[0:3])
		cs.msghdrtype = msghdrtype
		cs.msgdatalen = pio.U24BE(h[3:6])
		cs.msgtypeid = h[6]
		cs.msgsid = pio.U32LE(h[7:11])
		if timestamp == 0xffffff {
			if _, err = io.ReadFull(self.bufr, b[:4]); err != nil {
				err = fmt.Errorf("headertype=%d csid=%d read ext timestamp: %s", msghdrtype, csid, err.Error())
				return
			}
			n += 4
			timestamp = pio.U32BE(b)
			cs.hastimeext = true
		} else {
			cs.hastimeext = false
		}
		cs.timenow = timestamp
		cs.Start()

	case 1:
		// Figure 10 Chunk Message Header – Type 1
		if cs.msgdataleft != 0 {
			err = fmt.Errorf("headertype=%d csid=%d msgdataleft=%d chunk invalid", msghdrtype, csid, cs.msgdataleft)
			return
		}
		h := b[:7]
		if _, err = io.ReadFull(self.bufr, h); err != nil {
			err = fmt.Errorf("headertype=%d csid=%d read header %s", msghdrtype, csid, err.Error())
			return
		}
		n += len(h)
		timestamp = pio.U24BE(h[0:3])
		cs.msghdrtype = msghdrtype
		cs.msgdatalen = pio.U24BE(h[3:6])
		cs.msgtypeid = h[6]
		if timestamp == 0xffffff {
			if _, err = io.ReadFull(self.bufr, b[:4]); err != nil {
				err = fmt.Errorf("headertype=%d csid=%d read ext timestamp: %s", msghdrtype, csid, err.Error())
				return
			}
			n += 4
			timestamp = pio.U32BE(b)
			cs.hastimeext = true
		} else {
			cs.hastimeext = false
		}
		cs.timedelta = timestamp
		cs.timenow += timestamp
		cs.Start()

	case 2:
		// Figure 11 Chunk Message Header – Type 2
		if cs.msgdataleft != 0 {
			err = fmt.Errorf("headertype=%d csid=%d msgdataleft=%d chunk invalid", msghdrtype, csid, cs.msgdataleft)
			return
		}
		h := b[:3]
		if _, err = io.ReadFull(self.bufr, h); err != nil {
			err = fmt.Errorf("headertype=%d csid=%d read header %s", msghdrtype, csid, err.Error())
			return
		}
		n += len(h)
		cs.msghdrtype = msghdrtype
		timestamp = pio.U24BE(h[0:3])
		if timestamp == 0xffffff {
			if _, err = io.ReadFull(self.bufr, b[:4]); err != nil {
				err = fmt.Errorf("headertype=%d csid=%d read ext timestamp: %s", msghdrtype, csid, err.Error())
				return
			}
			n += 4
			timestamp = pio.U32BE(b)
			cs.hastimeext = true
		} else {
			cs.hastimeext = false
		}
		cs.timedelta = timestamp
		cs.timenow += timestamp
		cs.Start()

	case 3:
		if cs.msgdataleft == 0 {
			switch cs.msghdrtype {
			case 0:
				if cs.hastimeext {
					if _, err = io.ReadFull(self.bufr, b[:4]); err != nil {
						err = fmt.Errorf("headertype=%d csid=%d->%d read ext timestamp: %s", msghdrtype, cs.msghdrtype, csid, err.Error())
						return
					}
					n += 4
					timestamp = pio.U32BE(b)
					cs.timenow = timestamp
				}
			case 1, 2:
				if cs.hastimeext {
					if _, err = io.ReadFull(self.bufr, b[:4]); err != nil {
						err = fmt.Errorf("headertype=%d csid=%d->%d read ext timestamp: %s", msghdrtype, cs.msghdrtype, csid, err.Error())
						return
					}
					n += 4
					timestamp = pio.U32BE(b)
				} else {
					timestamp = cs.timedelta
				}
				cs.timenow += timestamp
			}
			cs.Start()
		} else if cs.hastimeext {
			var tbs []byte
			if tbs, err = self.bufr.Peek(4); err != nil {
				err = fmt.Errorf("headertype=%d csid=%d->%d try peek timestamp: %s", msghdrtype, cs.msghdrtype, csid, err.Error())
				return
			}
			if tmpts := pio.U32BE(tbs); tmpts > 0 && tmpts == cs.timenow {
				self.bufr.Discard(4)
			}
		}

	default:
		err = fmt.Errorf("headertype=%d csid=%d invalid headertype", msghdrtype, csid)
		return
	}

	size := int(cs.msgdataleft)
	if size > self.readMaxChunkSize {
		size = self.readMaxChunkSize
	}
	off := cs.msgdatalen - cs.msgdataleft
	buf := cs.msgdata[off : int(off)+size]
	if _, err = io.ReadFull(self.bufr, buf); err != nil {
		err = fmt.Errorf("read lefted rtmp data: %s size=%d offset=%d", err.Error(), size, off)
		self.debug("recv error headertype=%d csid=%d ts=%d msglen=%d msgtypeid=%d msgsid=%d %s",
			msghdrtype, csid, timestamp, cs.msgdatalen, cs.msgtypeid, cs.msgsid, err.Error())
		return
	}
	n += len(buf)
	cs.msgdataleft -= uint32(size)

	self.debug("recv chunk headertype=%d csid=%d ts=%d msglen=%d msgtypeid=%d msgsid=%d chunksize=%d offset=%d timenow=%d timedelta=%d",
		msghdrtype, csid, timestamp, cs.msgdatalen, cs.msgtypeid, cs.msgsid, size, off, cs.timenow, cs.timedelta)

	if cs.msgdataleft == 0 {
		if err = self.handleMsg(cs.timenow, cs.msgsid, cs.msgtypeid, cs.msgdata); err != nil {
			return
		}
	}

	self.ackn += uint32(n)
	if self.readAckSize != 0 && self.ackn > self.readAckSize {
		if err = self.writeAck(self.ackn); err != nil {
			err = fmt.Errorf("write ack: %s ack=%d", err.Error(), self.ackn)
			return
		}
		self.ackn = 0
	}

	return
}

func (self *conn) handleCommandMsgAMF0(b []byte) (n int, err error) {
	var name, transid, obj interface{}
	var size int

	if name, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
		err = fmt.Errorf("handleCommandMsgAMF0: get name: %s", err.Error())
		return
	}
	n += size
	if transid, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
		err = fmt.Errorf("handleCommandMsgAMF0: get transid: %s", err.Error())
		return
	}
	n += size
	if obj, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
		err = fmt.Errorf("handleCommandMsgAMF0: get obj: %s", err.Error())
		return
	}
	n += size

	var ok bool
	if self.commandname, ok = name.(string); !ok {
		err = fmt.Errorf("rtmp: CommandMsgAMF0 command is not string")
		return
	}
	self.commandtransid, _ = transid.(float64)
	self.commandobj, _ = obj.(flvio.AMFMap)
	self.commandparams = []interface{}{}

	for n < len(b) {
		if obj, size, err = flvio.ParseAMF0Val(b[n:]); err != nil {
			err = fmt.Errorf("handleCommandMsgAMF0: get commandparams: %s", err.Error())
			return
		}
		n += size
		self.commandparams = append(self.commandparams, obj)
	}

	self.gotcommand = true
	return
}

func (self *conn) handleMsg(timestamp uint32, msgsid uint32, msgtypeid uint8, msgdata []byte) (err error) {
	self.msgdata = msgdata
	self.msgtypeid = msgtypeid
	self.timestamp = timestamp

	switch msgtypeid {
	case msgtypeidCommandMsgAMF0:
		if _, err = self.handleCommandMsgAMF0(msgdata); err != nil {
			return
		}

	case msgtypeidCommandMsgAMF3:
		if len(msgdata) < 1 {
			err = fmt.Errorf("rtmp: short packet of CommandMsgAMF3")
			return
		}
		// skip first byte
		if _, err = self.handleCommandMsgAMF0(msgdata[1:]); err != nil {
			return
		}

	case msgtypeidUserControl:
		if len(msgdata) < 2 {
			err = fmt.Errorf("rtmp: short packet of UserControl")
			return
		}
		self.eventtype = pio.U16BE(msgdata)
		self.logger.Debug().Uint16("eventtype", self.eventtype).Msg("handleMsg: unhandled msg: msgtypeidUserControl")

	case msgtypeidWindowAckSize:
		if len(msgdata) < 4 {
			err = fmt.Errorf("rtmp: short packet of WindowAckSize")
			return
		}
		self.readAckSize = pio.U32BE(msgdata)

	case msgtypeidSetChunkSize:
		if len(msgdata) < 4 {
			err = fmt.Errorf("rtmp: short packet of SetChunkSize")
			return
		}
		self.readMaxChunkSize = int(pio.U32BE(msgdata))
		self.logger.Debug().Uint32("msgsid", msgsid).Int("chunksize", self.readMaxChunkSize).Msg("[rtmp] command SetChunkSize")
		return

	default:
		self.logger.Debug().Uint8("msgtypeid", msgtypeid).Uint32("msgsid", msgsid).Uint32("timestamp", timestamp).Msg("handleMsg: unhandled msg")
	}

	self.gotmsg = true
	return
}

// HandshakeClient 简单握手, C1不带digest
func (self *conn) HandshakeClient() error {
	var err error
	var random [(1 + 1536*2) * 2]byte

	C0C1C2 := random[:1536*2+1]
	C0 := C0C1C2[:1]
	C1 := C0C1C2[1 : 1536+1]
	C0C1 := C0C1C2[:1536+1]

	S0S1S2 := random[1536*2+1:]
	S0 := S0S1S2[:1]
	S1 := S0S1S2[1 : 1536+1]

	C0[0] = 3
	pio.PutU32BE(C1[0:4], uint32(time.Now().Unix()))
	rand.Read(C1[8:])

	self.debug("localaddr=%s remoteaddr=%s", self.netconn.LocalAddr().String(), self.netconn.RemoteAddr().String())
	// > C0C1
	self.debug("send handshake C0C1")
	self.setDeadline()
	if _, err = self.bufw.Write(C0C1); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}
	if err = self.bufw.Flush(); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}

	// < S0S1S2
	self.setDeadline()
	if _, err = io.ReadFull(self.bufr, S0S1S2); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}
	if S0[0] != 3 {
		return fmt.Errorf("rtmp HandshakeClient: server version=%d invalid", S0[0])
	}
	self.debug("recv handshake S0S1S2 server version " + fmt.Sprint(S1[4], S1[5], S1[6], S1[7]))

	// > C2
	self.debug("send handshake C2")
	self.setDeadline()
	if _, err = self.bufw.Write(S1); err != nil {
		return errors.Wrap(err, "rtmp HandshakeClient")
	}

	self.stage++
	return nil
}

// debug 写入debug信息
func (self *conn) debug(format string, args ...interface{}) {
	if !self.debuger.Enabled() {
		return
	}
	self.debuger.Debug(self.opts.RoleID+" "+format, args...)
}

func (self *conn) RemoteAddr() string {
	if self.netconn != nil {
		return self.netconn.RemoteAddr().String()
	}
	return ""
}

func (self *conn) Info() common.Info {
	if self == nil {
		return common.Info{}
	}
	self.info.IsPublishing = self.publishing
	return self.info
}
