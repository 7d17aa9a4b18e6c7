package rtmp

import (
	"github.com/pkg/errors"
)

const (
	codeConnectSuccess          = "NetConnection.Connect.Success"
	codePublishStart            = "NetStream.Publish.Start"
	codePublishBadName          = "NetStream.Publish.BadName"
	codePublishStreamDuplicated = "NetStream.Publish.StreamDuplicated"
)

var (
	ErrNotConnected        = errors.New("rtmp: not connected")
	ErrNoURL               = errors.New("rtmp: url not set up")
	ErrUnsupportedProtocol = errors.New("rtmp: protocol not supported by this client")
	ErrPacketTooSmall      = errors.New("rtmp: flv packet too small")
	ErrInvalidTag          = errors.New("rtmp: invalid flv tag")
	ErrPublishBadName      = errors.New("rtmp: publish bad name")
	ErrStreamDuplicated    = errors.New("rtmp: stream duplicated")
)

var (
	codePublishErrors = map[string]error{
		codePublishBadName:          ErrPublishBadName,
		codePublishStreamDuplicated: ErrStreamDuplicated,
	}
)
