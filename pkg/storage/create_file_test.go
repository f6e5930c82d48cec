package storage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFile_WritesChunksInOrder(t *testing.T) {
	s, root := newTestStorage(t)

	_, err := s.CreateFile(context.Background(), CreateFile{
		Path:   MustParseRelativePath("a/b/c.txt"),
		Chunks: Chunks([]byte("AB"), []byte("CD")),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, DataDir, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ABCD", string(data))
}

func TestCreateFile_Overwrites(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()
	path := MustParseRelativePath("file.txt")

	_, err := s.CreateFile(ctx, CreateFile{Path: path, Chunks: Chunks([]byte("a much longer first version"))})
	require.NoError(t, err)

	_, err = s.CreateFile(ctx, CreateFile{Path: path, Chunks: Chunks([]byte("short"))})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.DataRoot(), "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "short", string(data))
}

func TestCreateFile_EmptySources(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("nil")})
	require.NoError(t, err)

	_, err = s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("none"), Chunks: Chunks()})
	require.NoError(t, err)

	_, err = s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("blank"), Chunks: Chunks([]byte{}, nil)})
	require.NoError(t, err)

	for _, name := range []string{"nil", "none", "blank"} {
		info, err := os.Stat(filepath.Join(s.DataRoot(), name))
		require.NoError(t, err)
		assert.Zero(t, info.Size(), name)
	}
}

func TestCreateFile_ChunkSourceError(t *testing.T) {
	s, _ := newTestStorage(t)
	boom := errors.New("upstream reset")

	src := func(yield func([]byte, error) bool) {
		if !yield([]byte("AB"), nil) {
			return
		}
		yield(nil, boom)
	}

	_, err := s.CreateFile(context.Background(), CreateFile{
		Path:   MustParseRelativePath("partial.bin"),
		Chunks: src,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpCreateFile, opErr.Op)
	assert.Equal(t, "write", opErr.Step)

	// No rollback: what was written before the failure stays.
	data, err := os.ReadFile(filepath.Join(s.DataRoot(), "partial.bin"))
	require.NoError(t, err)
	assert.Equal(t, "AB", string(data))
}

func TestCreateFile_StopsConsumingOnError(t *testing.T) {
	s, _ := newTestStorage(t)
	pulled := 0

	var src iter.Seq2[[]byte, error] = func(yield func([]byte, error) bool) {
		for range 10 {
			pulled++
			if !yield(nil, errors.New("bad chunk")) {
				return
			}
		}
	}

	_, err := s.CreateFile(context.Background(), CreateFile{Path: MustParseRelativePath("x"), Chunks: src})
	require.Error(t, err)
	assert.Equal(t, 1, pulled)
}

func TestCreateFile_CancelledContext(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CreateFile(ctx, CreateFile{
		Path:   MustParseRelativePath("dir/never.txt"),
		Chunks: Chunks([]byte("x")),
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(filepath.Join(s.DataRoot(), "dir"))
	assert.ErrorIs(t, statErr, fs.ErrNotExist)
}

func TestCreateFile_CancelledMidStream(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := func(yield func([]byte, error) bool) {
		if !yield([]byte("first"), nil) {
			return
		}
		cancel()
		yield([]byte("second"), nil)
	}

	_, err := s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("mid.txt"), Chunks: src})
	assert.ErrorIs(t, err, context.Canceled)

	data, err := os.ReadFile(filepath.Join(s.DataRoot(), "mid.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestCreateFile_ZeroPath(t *testing.T) {
	s, _ := newTestStorage(t)

	_, err := s.CreateFile(context.Background(), CreateFile{Chunks: Chunks([]byte("x"))})
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCreateFile_ParentIsFile(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("a"), Chunks: Chunks([]byte("file"))})
	require.NoError(t, err)

	_, err = s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("a/b"), Chunks: Chunks([]byte("x"))})
	require.Error(t, err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "mkdir", opErr.Step)
}

func TestCreateFile_WritesThroughSymlink(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("target"), Chunks: Chunks([]byte("old"))})
	require.NoError(t, err)
	_, err = s.Symlink(ctx, Symlink{Source: MustParseRelativePath("target"), Link: MustParseRelativePath("link")})
	require.NoError(t, err)

	_, err = s.CreateFile(ctx, CreateFile{Path: MustParseRelativePath("link"), Chunks: Chunks([]byte("new"))})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.DataRoot(), "target"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestReaderChunks(t *testing.T) {
	input := strings.Repeat("0123456789", 10)

	var got bytes.Buffer
	var sizes []int
	for chunk, err := range ReaderChunks(strings.NewReader(input), 16) {
		require.NoError(t, err)
		sizes = append(sizes, len(chunk))
		got.Write(chunk)
	}

	assert.Equal(t, input, got.String())
	for _, n := range sizes {
		assert.LessOrEqual(t, n, 16)
	}
}

func TestReaderChunks_Error(t *testing.T) {
	boom := errors.New("read failed")

	var seen error
	for _, err := range ReaderChunks(iotest.ErrReader(boom), 0) {
		if err != nil {
			seen = err
		}
	}
	assert.ErrorIs(t, seen, boom)
}

func TestCreateFile_FromReader(t *testing.T) {
	s, _ := newTestStorage(t)
	payload := bytes.Repeat([]byte{0xAB}, 200_000)

	_, err := s.CreateFile(context.Background(), CreateFile{
		Path:   MustParseRelativePath("big.bin"),
		Chunks: ReaderChunks(iotest.HalfReader(bytes.NewReader(payload)), 4096),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.DataRoot(), "big.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}
