package streams

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	require := require.New(t)
	var got []string
	err := Lines(strings.NewReader(" a \n\nb\r\nc"), func(line string) error {
		got = append(got, line)
		return nil
	})
	require.NoError(err)
	require.Equal([]string{"a", "", "b", "c"}, got)

	stop := errors.New("stop")
	calls := 0
	err = Lines(strings.NewReader("a\nb"), func(string) error {
		calls++
		return stop
	})
	require.ErrorIs(err, stop)
	require.Equal(1, calls)
}

func TestNewTestIO(t *testing.T) {
	require := require.New(t)
	s, in, out, errOut := NewTestIO()
	in.WriteString("input")
	_, _ = s.Out.Write([]byte("out"))
	_, _ = s.ErrOut.Write([]byte("err"))

	buf := make([]byte, 5)
	n, err := s.In.Read(buf)
	require.NoError(err)
	require.Equal("input", string(buf[:n]))
	require.Equal("out", out.String())
	require.Equal("err", errOut.String())
}
