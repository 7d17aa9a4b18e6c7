package errs

import (
	"github.com/pkg/errors"
)

const (
	CodeDuplicateStream = 1001
	CodeStreamNotExist  = 1002
	CodeNoLocator       = 1003
	CodeInvalidLocator  = 1004
	CodeFileNotExist    = 1005
	CodeSetupURL        = 2001
	CodeConnect         = 2002
	CodeWrite           = 2003
	CodeUnknown         = 9999
)

var (
	ErrDuplicateStream = New(CodeDuplicateStream, "duplicate stream")
	ErrStreamNotExist  = New(CodeStreamNotExist, "stream not exist")
	ErrNoLocator       = New(CodeNoLocator, "no location set before starting")
	ErrInvalidLocator  = New(CodeInvalidLocator, "invalid location")
	ErrFileNotExist    = New(CodeFileNotExist, "file not exist")
	ErrSetupURL        = New(CodeSetupURL, "failed to setup url")
	ErrConnect         = New(CodeConnect, "could not connect to server")
	ErrWrite           = New(CodeWrite, "allocation or flv packet too small error")
)

const (
	Success = "success"
)

type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func New(code int32, msg string) error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Code returns the code of the first *Error found in e's cause chain.
func Code(e error) int32 {
	if e == nil {
		return 0
	}
	var err *Error
	if !errors.As(e, &err) {
		return CodeUnknown
	}

	if err == nil {
		return 0
	}
	return err.Code
}

func Msg(e error) string {
	if e == nil {
		return Success
	}
	var err *Error
	if !errors.As(e, &err) {
		return "unknown error: " + e.Error()
	}

	if err == nil {
		return Success
	}

	return err.Msg
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
