package transcoder

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpegReverse(t *testing.T) {
	ctx := context.Background()

	t.Run("passes audio through the areverse filter", func(t *testing.T) {
		var gotName string
		var gotArgs []string
		f := NewFFmpeg("/usr/bin/ffmpeg")
		f.run = func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
			gotName, gotArgs = name, args
			out := slices.Clone(stdin)
			slices.Reverse(out)
			return out, nil
		}

		out, err := f.Reverse(ctx, []byte{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []byte{3, 2, 1}, out)
		assert.Equal(t, "/usr/bin/ffmpeg", gotName)
		assert.Contains(t, gotArgs, "areverse")
		assert.Equal(t, "pipe:1", gotArgs[len(gotArgs)-1])
	})

	t.Run("defaults binary name", func(t *testing.T) {
		assert.Equal(t, "ffmpeg", NewFFmpeg("").path)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := NewFFmpeg("").Reverse(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("command failure", func(t *testing.T) {
		f := NewFFmpeg("")
		f.run = func(context.Context, string, []string, []byte) ([]byte, error) {
			return nil, errors.New("exit status 1")
		}
		_, err := f.Reverse(ctx, []byte{1})
		assert.ErrorContains(t, err, "ffmpeg reverse failed")
	})

	t.Run("no output", func(t *testing.T) {
		f := NewFFmpeg("")
		f.run = func(context.Context, string, []string, []byte) ([]byte, error) { return nil, nil }
		_, err := f.Reverse(ctx, []byte{1})
		assert.Error(t, err)
	})
}
