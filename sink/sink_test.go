package sink

import (
	"testing"
	"time"

	"github.com/bugVanisher/rtmpsink/common/errs"
	"github.com/bugVanisher/rtmpsink/media/av"
	"github.com/bugVanisher/rtmpsink/media/protocol/rtmp"
	"github.com/bugVanisher/rtmpsink/statistics"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testLocation = "rtmp://127.0.0.1/live/stream"

var errBrokenPipe = errors.New("write: broken pipe")

var fileHeader = av.Packet{Data: []byte{'F', 'L', 'V', 1, 5, 0, 0, 0, 9, 0, 0, 0, 0}}

func joined(pkts ...av.Packet) []byte {
	var b []byte
	for _, p := range pkts {
		b = append(b, p.Data...)
	}
	return b
}

func newTestSink(t *testing.T, delay time.Duration, clients ...*MockClient) (*Sink, ChanPoster) {
	events := NewChanPoster(16)
	next := 0
	s := New(
		WithLocation(testLocation),
		WithReconnectionDelay(delay),
		WithTCPTimeout(time.Second),
		WithPoster(events),
		WithClientFactory(func(rtmp.LogLevel) Client {
			require.Less(t, next, len(clients), "unexpected client creation")
			c := clients[next]
			next++
			return c
		}),
	)
	return s, events
}

// expectSession 客户端创建后立即建连
func expectSession(c *MockClient, connectErr error) {
	c.EXPECT().SetupURL(testLocation).Return(nil)
	c.EXPECT().IsConnected().Return(false)
	c.EXPECT().Connect(time.Second).Return(connectErr)
}

func requireEvent(t *testing.T, events ChanPoster, kind EventKind, ts time.Duration) {
	select {
	case ev := <-events:
		require.Equal(t, kind, ev.Kind)
		require.Equal(t, ts, ev.Timestamp)
		require.Equal(t, testLocation, ev.Location)
		require.NotEmpty(t, ev.ID)
	default:
		t.Fatalf("no %s event", kind)
	}
}

func requireNoEvent(t *testing.T, events ChanPoster) {
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %s", ev.Kind)
	default:
	}
}

func TestSink_FirstConnectJoinsHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)

	header := tagPacket(av.FLV_TAG_SCRIPTDATA, 0, 'h')
	video := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'v')

	expectSession(c1, nil)
	c1.EXPECT().Write(joined(header, video)).Return(len(header.Data)+len(video.Data), nil)
	c1.EXPECT().Close().Return(nil)

	flow := statistics.NewFlow()
	s, events := newTestSink(t, 10*time.Second, c1)
	s.opts.Flow = flow
	require.NoError(t, s.Start())

	require.NoError(t, s.Consume(header))
	require.Equal(t, StatusOK, s.ConnectionStatus())
	requireNoEvent(t, events)

	require.NoError(t, s.Consume(video))
	requireNoEvent(t, events)

	// 建连前的packet不会被当作metadata
	require.False(t, s.meta.captured(metadataSession))
	require.True(t, s.meta.captured(metadataVideo))
	require.Equal(t, uint64(1), flow.Snapshot().SentPackets)

	require.NoError(t, s.Stop())
}

func TestSink_StopIdempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c1.EXPECT().SetupURL(testLocation).Return(nil)
	c1.EXPECT().Close().Return(nil).Times(1)

	s, _ := newTestSink(t, 10*time.Second, c1)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Close())
}

func TestSink_StartWithoutLocation(t *testing.T) {
	s := New()
	err := s.Start()
	require.ErrorIs(t, err, errs.ErrNoLocator)
	require.Equal(t, int32(errs.CodeNoLocator), errs.Code(err))
}

func TestSink_StartSetupError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c1.EXPECT().SetupURL(testLocation).Return(rtmp.ErrUnsupportedProtocol)
	c1.EXPECT().Close().Return(nil)

	s, _ := newTestSink(t, 10*time.Second, c1)
	err := s.Start()
	require.Error(t, err)
	require.Equal(t, int32(errs.CodeSetupURL), errs.Code(err))
	require.False(t, s.session.started())
	require.NoError(t, s.Stop())
}

func TestSink_Configure(t *testing.T) {
	s := New()
	cfg := DefaultConfig()
	cfg.Location = "rtmp://example.com/live/a"
	cfg.LogLevel = "debug"
	require.NoError(t, s.Configure(cfg))
	require.Equal(t, cfg.Location, s.Location())
	require.Equal(t, rtmp.LogDebug, s.opts.LogLevel)
	require.Equal(t, DefaultReconnectionDelay, s.opts.ReconnectionDelay)

	cfg.Location = "http://example.com/live/a"
	err := s.Configure(cfg)
	require.Equal(t, int32(errs.CodeInvalidLocator), errs.Code(err))
	require.Empty(t, s.Location())

	cfg.Location = "rtmp://example.com/live/a"
	cfg.LogLevel = "verbose"
	require.Error(t, s.Configure(cfg))
}

func TestSink_ZeroDelayFailsFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	expectSession(c1, errors.New("connection refused"))

	s, events := newTestSink(t, 0, c1)
	require.NoError(t, s.Start())

	err := s.Consume(fileHeader)
	require.ErrorIs(t, err, errs.ErrConnect)
	require.Equal(t, int32(errs.CodeConnect), errs.Code(err))
	requireNoEvent(t, events)
}

func TestSink_WriteRejectedIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	video := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'v')

	expectSession(c1, nil)
	c1.EXPECT().Write(joined(fileHeader, video)).Return(0, rtmp.ErrPacketTooSmall)

	s, _ := newTestSink(t, 10*time.Second, c1)
	require.NoError(t, s.Start())
	require.NoError(t, s.Consume(fileHeader))

	err := s.Consume(video)
	require.ErrorIs(t, err, errs.ErrWrite)
	require.Equal(t, int32(errs.CodeWrite), errs.Code(err))
}

func TestSink_WriteFailureRebuildsSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c2 := NewMockClient(ctrl)

	p1 := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'v', 1)
	p2 := tagPacket(av.FLV_TAG_AUDIO, 60*time.Millisecond, 'a', 1)
	p3 := tagPacket(av.FLV_TAG_VIDEO, 80*time.Millisecond, 'v', 2)
	p4 := tagPacket(av.FLV_TAG_VIDEO, 120*time.Millisecond, 'v', 3)
	p5 := tagPacket(av.FLV_TAG_AUDIO, 140*time.Millisecond, 'a', 2)

	expectSession(c1, nil)
	gomock.InOrder(
		c1.EXPECT().Write(joined(fileHeader, p1)).Return(15, nil),
		c1.EXPECT().Write(p2.Data).Return(len(p2.Data), nil),
		c1.EXPECT().Write(p3.Data).Return(0, errBrokenPipe),
		c1.EXPECT().Close().Return(nil),
	)
	expectSession(c2, nil)
	gomock.InOrder(
		c2.EXPECT().Write(p1.Data).Return(len(p1.Data), nil),
		c2.EXPECT().Write(p2.Data).Return(len(p2.Data), nil),
		c2.EXPECT().Write(joined(p4, p5)).Return(6, nil),
		c2.EXPECT().Close().Return(nil),
	)

	s, events := newTestSink(t, 10*time.Second, c1, c2)
	require.NoError(t, s.Start())
	for _, p := range []av.Packet{fileHeader, p1, p2, p3} {
		require.NoError(t, s.Consume(p))
	}
	require.Equal(t, StatusFailed, s.sentStatus)
	require.True(t, s.reconnectionRequired)
	require.True(t, s.tryNowConnection)
	require.Equal(t, p3.Time, s.beginTimeDisc)

	// 下一个packet触发重建, 重发metadata, 自身被缓存
	require.NoError(t, s.Consume(p4))
	require.False(t, s.reconnectionRequired)
	require.Equal(t, p4.Time, s.beginTimeDisc)
	require.Equal(t, StatusOK, s.ConnectionStatus())
	requireNoEvent(t, events)

	require.NoError(t, s.Consume(p5))
	require.NoError(t, s.Stop())
}

func TestSink_GraceWindowAndReconnected(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c2 := NewMockClient(ctrl)
	c3 := NewMockClient(ctrl)
	c4 := NewMockClient(ctrl)

	video := func(ts time.Duration) av.Packet {
		return tagPacket(av.FLV_TAG_VIDEO, ts, 'v', byte(ts/time.Millisecond))
	}
	p1 := video(40 * time.Millisecond)
	p2 := video(time.Second)
	p7 := video(21200 * time.Millisecond)
	p8 := video(21240 * time.Millisecond)

	expectSession(c1, nil)
	c1.EXPECT().Write(joined(fileHeader, p1)).Return(16, nil)
	c1.EXPECT().Write(p2.Data).Return(0, errBrokenPipe)
	c1.EXPECT().Close().Return(nil)
	expectSession(c2, errors.New("connection refused"))
	expectSession(c3, errors.New("connection refused"))
	expectSession(c4, nil)
	gomock.InOrder(
		c4.EXPECT().Write(p1.Data).Return(len(p1.Data), nil),
		c4.EXPECT().Write(joined(p7, p8)).Return(6, nil),
		c4.EXPECT().Close().Return(nil),
	)

	flow := statistics.NewFlow()
	s, events := newTestSink(t, 10*time.Second, c1, c2, c3, c4)
	s.opts.Flow = flow
	require.NoError(t, s.Start())
	require.NoError(t, s.Consume(fileHeader))
	require.NoError(t, s.Consume(p1))
	require.NoError(t, s.Consume(p2))

	// 第一次重连失败, 发出disconnected
	require.NoError(t, s.Consume(video(1040*time.Millisecond)))
	requireEvent(t, events, EventDisconnected, 1040*time.Millisecond)
	require.Equal(t, StatusFailed, s.ConnectionStatus())
	require.False(t, s.tryNowConnection)

	// 重连间隔内不做任何尝试
	require.NoError(t, s.Consume(video(5*time.Second)))
	require.NoError(t, s.Consume(video(11040*time.Millisecond)))

	// 第二次重连失败, 不重复通知
	require.NoError(t, s.Consume(video(11100*time.Millisecond)))
	require.Equal(t, 11100*time.Millisecond, s.beginTimeDisc)
	requireNoEvent(t, events)

	// 第三次成功
	require.NoError(t, s.Consume(p7))
	requireEvent(t, events, EventReconnected, p7.Time)
	require.True(t, s.disconnectionNotified)

	require.NoError(t, s.Consume(p8))
	require.NoError(t, s.Stop())

	snap := flow.Snapshot()
	require.Equal(t, uint64(1), snap.Events[string(EventDisconnected)])
	require.Equal(t, uint64(1), snap.Events[string(EventReconnected)])
	require.NotZero(t, snap.DroppedPackets)
}

func TestSink_BandwidthEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c2 := NewMockClient(ctrl)
	c3 := NewMockClient(ctrl)

	p1 := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'v', 1)
	p2 := tagPacket(av.FLV_TAG_VIDEO, 80*time.Millisecond, 'v', 2)
	p3 := tagPacket(av.FLV_TAG_VIDEO, 120*time.Millisecond, 'v', 3)
	p4 := tagPacket(av.FLV_TAG_VIDEO, 160*time.Millisecond, 'v', 4)
	p5 := tagPacket(av.FLV_TAG_VIDEO, 200*time.Millisecond, 'v', 5)

	expectSession(c1, nil)
	c1.EXPECT().Write(joined(fileHeader, p1)).Return(16, nil)
	c1.EXPECT().Write(p2.Data).Return(0, errBrokenPipe)
	c1.EXPECT().Close().Return(nil)
	expectSession(c2, nil)
	gomock.InOrder(
		c2.EXPECT().Write(p1.Data).Return(len(p1.Data), nil),
		c2.EXPECT().Write(joined(p3, p4)).Return(0, errBrokenPipe),
		c2.EXPECT().Close().Return(nil),
	)
	expectSession(c3, nil)
	c3.EXPECT().Write(p1.Data).Return(len(p1.Data), nil)
	c3.EXPECT().Close().Return(nil)

	s, events := newTestSink(t, 10*time.Second, c1, c2, c3)
	require.NoError(t, s.Start())
	for _, p := range []av.Packet{fileHeader, p1, p2, p3} {
		require.NoError(t, s.Consume(p))
	}
	requireNoEvent(t, events)
	require.Equal(t, 1, s.sendErrorCount)

	require.NoError(t, s.Consume(p4))
	require.Equal(t, 2, s.sendErrorCount)

	require.NoError(t, s.Consume(p5))
	requireEvent(t, events, EventBandwidth, p5.Time)
	require.Zero(t, s.sendErrorCount)
	require.NoError(t, s.Stop())
}

func TestSink_FailedReplayTriggersReconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c2 := NewMockClient(ctrl)
	c3 := NewMockClient(ctrl)

	p1 := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'v', 1)
	p2 := tagPacket(av.FLV_TAG_VIDEO, 80*time.Millisecond, 'v', 2)
	p3 := tagPacket(av.FLV_TAG_VIDEO, 120*time.Millisecond, 'v', 3)
	p4 := tagPacket(av.FLV_TAG_VIDEO, 160*time.Millisecond, 'v', 4)
	p5 := tagPacket(av.FLV_TAG_VIDEO, 200*time.Millisecond, 'v', 5)

	expectSession(c1, nil)
	c1.EXPECT().Write(joined(fileHeader, p1)).Return(16, nil)
	c1.EXPECT().Write(p2.Data).Return(0, errBrokenPipe)
	c1.EXPECT().Close().Return(nil)
	expectSession(c2, nil)
	c2.EXPECT().Write(p1.Data).Return(0, errBrokenPipe)
	c2.EXPECT().Close().Return(nil)
	expectSession(c3, nil)
	c3.EXPECT().Write(p1.Data).Return(len(p1.Data), nil)
	c3.EXPECT().Close().Return(nil)

	s, _ := newTestSink(t, 10*time.Second, c1, c2, c3)
	require.NoError(t, s.Start())
	for _, p := range []av.Packet{fileHeader, p1, p2, p3} {
		require.NoError(t, s.Consume(p))
	}
	require.Equal(t, StatusFailed, s.ConnectionStatus())
	require.False(t, s.reconnectionRequired)

	// 不写出, 转入重连
	require.NoError(t, s.Consume(p4))
	require.True(t, s.reconnectionRequired)
	require.True(t, s.tryNowConnection)

	require.NoError(t, s.Consume(p5))
	require.Equal(t, StatusOK, s.ConnectionStatus())
	require.NoError(t, s.Stop())
}

func TestSink_RebuildSetupErrorSurfaces(t *testing.T) {
	ctrl := gomock.NewController(t)
	c1 := NewMockClient(ctrl)
	c2 := NewMockClient(ctrl)

	p1 := tagPacket(av.FLV_TAG_VIDEO, 40*time.Millisecond, 'v', 1)
	p2 := tagPacket(av.FLV_TAG_VIDEO, 80*time.Millisecond, 'v', 2)

	expectSession(c1, nil)
	c1.EXPECT().Write(joined(fileHeader, p1)).Return(16, nil)
	c1.EXPECT().Write(p2.Data).Return(0, errBrokenPipe)
	c1.EXPECT().Close().Return(nil)
	c2.EXPECT().SetupURL(testLocation).Return(errors.New("no memory"))
	c2.EXPECT().Close().Return(nil)

	s, _ := newTestSink(t, 10*time.Second, c1, c2)
	require.NoError(t, s.Start())
	for _, p := range []av.Packet{fileHeader, p1, p2} {
		require.NoError(t, s.Consume(p))
	}
	err := s.Consume(tagPacket(av.FLV_TAG_VIDEO, 120*time.Millisecond))
	require.ErrorIs(t, err, errs.ErrSetupURL)
}

func TestSink_DropsBeforeStart(t *testing.T) {
	s, _ := newTestSink(t, 10*time.Second)
	require.NoError(t, s.Consume(fileHeader))
	require.Equal(t, StatusNever, s.ConnectionStatus())
}
