package uploads

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tcases := []struct {
		name    string
		want    types.FileType
		allowed bool
	}{
		{name: "cat.PNG", want: types.FileTypeImage, allowed: true},
		{name: "clip.webm", want: types.FileTypeVideo, allowed: true},
		{name: "song.flac", want: types.FileTypeAudio, allowed: true},
		{name: "report.pdf", want: types.FileTypeDocument, allowed: true},
		{name: "slides.pptx", want: types.FileTypeDocument, allowed: true},
		{name: "run.exe", want: types.FileTypeDocument, allowed: false},
		{name: "noext", want: types.FileTypeDocument, allowed: false},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.name))
			assert.Equal(t, tc.allowed, Allowed(tc.name))
		})
	}
}

func TestSecureFilename(t *testing.T) {
	tcases := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "my holiday pic.jpg", want: "my_holiday_pic.jpg"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\notes.txt`, want: "notes.txt"},
		{in: "ünïcode.png", want: "ncode.png"},
		{in: "..", want: ""},
		{in: ".hidden.txt", want: "hidden.txt"},
	}

	for _, tc := range tcases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, SecureFilename(tc.in))
		})
	}
}

func TestStore_Save(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 16)
	require.NoError(t, err)

	stored, err := s.Save("my notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Name, "_my_notes.txt"))
	assert.Equal(t, "/uploads/"+stored.Name, stored.Url)
	assert.EqualValues(t, 5, stored.Size)
	assert.Equal(t, types.FileTypeDocument, stored.FileType)

	data, err := os.ReadFile(filepath.Join(dir, stored.Name))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	again, err := s.Save("my notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.NotEqual(t, stored.Name, again.Name, "expected unique stored names")
}

func TestStore_SaveErrors(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 4)
	require.NoError(t, err)

	_, err = s.Save("", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrEmptyFilename)

	_, err = s.Save("virus.exe", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrFileTypeNotAllowed)

	_, err = s.Save("big.txt", strings.NewReader("12345"))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "expected rejected uploads to leave nothing behind")
}
