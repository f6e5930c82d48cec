package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReadFile_Absent(t *testing.T) {
	s, _ := newTestStorage(t)

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("nope/never.txt")})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestReadFile_RoundTrip(t *testing.T) {
	s, _ := newTestStorage(t)
	before := time.Now().Add(-time.Minute)

	writeFile(t, s, "docs/readme.md", "# baza\n")

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("docs/readme.md")})
	require.NoError(t, err)
	require.NotNil(t, f)
	defer func() { _ = f.Close() }()

	assert.Equal(t, int64(7), f.Size())
	assert.True(t, f.ModTime().After(before))

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "# baza\n", string(data))
}

func TestReadFile_DirectoryIsAbsent(t *testing.T) {
	s, _ := newTestStorage(t)
	writeFile(t, s, "dir/file", "x")

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("dir")})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestReadFile_ParentIsFile(t *testing.T) {
	s, _ := newTestStorage(t)
	writeFile(t, s, "file", "x")

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("file/child")})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestReadFile_DanglingLinkIsAbsent(t *testing.T) {
	s, _ := newTestStorage(t)

	require.NoError(t, os.Symlink(
		filepath.Join(s.DataRoot(), "gone"),
		filepath.Join(s.DataRoot(), "dangling"),
	))

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("dangling")})
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestReadFile_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	s, _ := newTestStorage(t)
	writeFile(t, s, "secret", "x")
	require.NoError(t, os.Chmod(filepath.Join(s.DataRoot(), "secret"), 0o000))

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("secret")})
	require.Error(t, err)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestReadFile_LinkLoop(t *testing.T) {
	s, _ := newTestStorage(t)
	loop := filepath.Join(s.DataRoot(), "loop")
	require.NoError(t, os.Symlink(loop, loop))

	f, err := s.ReadFile(context.Background(), ReadFile{Path: MustParseRelativePath("loop")})
	require.Error(t, err)
	assert.Nil(t, f)
	assert.ErrorIs(t, err, unix.ELOOP)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, loop, opErr.Path)
	assert.Equal(t, 1, strings.Count(err.Error(), loop), err.Error())
}

func TestReadFile_CancelledContext(t *testing.T) {
	s, _ := newTestStorage(t)
	writeFile(t, s, "a", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := s.ReadFile(ctx, ReadFile{Path: MustParseRelativePath("a")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, f)
}

func TestReadFile_HandleOutlivesRetarget(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	writeFile(t, s, "a", "first")
	writeFile(t, s, "b", "second")
	_, err := s.Symlink(ctx, Symlink{Source: MustParseRelativePath("a"), Link: MustParseRelativePath("l")})
	require.NoError(t, err)

	f, err := s.ReadFile(ctx, ReadFile{Path: MustParseRelativePath("l")})
	require.NoError(t, err)
	require.NotNil(t, f)
	defer func() { _ = f.Close() }()

	_, err = s.Symlink(ctx, Symlink{Source: MustParseRelativePath("b"), Link: MustParseRelativePath("l")})
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

// TestStorage_EndToEnd walks through the typical lifecycle: write an object,
// alias it, re-target the alias while it is being read.
func TestStorage_EndToEnd(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	s, err := New(ctx, root)
	require.NoError(t, err)

	_, err = s.FileCreator().Exec(ctx, CreateFile{
		Path:   MustParseRelativePath("objects/a.bin"),
		Chunks: Chunks([]byte{0x01, 0x02}, []byte{0x03}),
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, DataDir, "objects", "a.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, raw)

	alias := MustParseRelativePath("objects/alias.bin")
	_, err = s.Linker().Exec(ctx, Symlink{Source: MustParseRelativePath("objects/a.bin"), Link: alias})
	require.NoError(t, err)

	readAlias := func() []byte {
		f, err := s.FileReader().Exec(ctx, ReadFile{Path: alias})
		require.NoError(t, err)
		require.NotNil(t, f)
		defer func() { _ = f.Close() }()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, readAlias())

	_, err = s.FileCreator().Exec(ctx, CreateFile{
		Path:   MustParseRelativePath("objects/b.bin"),
		Chunks: Chunks([]byte{0x0A, 0x0B}),
	})
	require.NoError(t, err)

	_, err = s.Linker().Exec(ctx, Symlink{Source: MustParseRelativePath("objects/b.bin"), Link: alias})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A, 0x0B}, readAlias())
}
