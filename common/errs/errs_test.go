package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeFollowsWrapChain(t *testing.T) {
	err := Wrapf(ErrSetupURL, "url: %s", "rtmp://host/app/stream")
	require.Equal(t, int32(CodeSetupURL), Code(err))
	require.Equal(t, "failed to setup url", Msg(err))
	require.True(t, Is(err, ErrSetupURL))
	require.False(t, Is(err, ErrConnect))
}

func TestCodeOfForeignError(t *testing.T) {
	require.Equal(t, int32(0), Code(nil))
	require.Equal(t, Success, Msg(nil))
	require.Equal(t, int32(CodeUnknown), Code(fmt.Errorf("boom")))
	require.Equal(t, "unknown error: boom", Msg(fmt.Errorf("boom")))
}
