package simplestorage_test

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storage/pkg/simplestorage"
)

func TestHashReader(t *testing.T) {
	t.Run("KnownDigest", func(t *testing.T) {
		hashed := simplestorage.NewHashReader(strings.NewReader("hello"))

		data, err := io.ReadAll(hashed)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		assert.Equal(t, helloDigest, hashed.Digest())
		assert.Equal(t, int64(5), hashed.Size())
	})

	t.Run("DigestIndependentOfChunking", func(t *testing.T) {
		whole := simplestorage.NewHashReader(strings.NewReader("some longer content"))
		_, err := io.ReadAll(whole)
		require.NoError(t, err)

		// One byte at a time must produce the same digest
		chunked := simplestorage.NewHashReader(iotest.OneByteReader(strings.NewReader("some longer content")))
		_, err = io.ReadAll(chunked)
		require.NoError(t, err)

		assert.Equal(t, whole.Digest(), chunked.Digest())
		assert.Equal(t, whole.Size(), chunked.Size())
	})

	t.Run("EmptyInput", func(t *testing.T) {
		hashed := simplestorage.NewHashReader(strings.NewReader(""))

		_, err := io.ReadAll(hashed)
		require.NoError(t, err)
		// sha256 of the empty string
		assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", hashed.Digest())
		assert.Zero(t, hashed.Size())
	})
}
