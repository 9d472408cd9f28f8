package bundle

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteNames_ExactContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteNames(fs, "names", []string{"a", "b"}))

	raw, err := afero.ReadFile(fs, "names")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(raw))
}

func TestWriteNames_EmptyListCreatesEmptyFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteNames(fs, "names", nil))

	st, err := fs.Stat("names")
	require.NoError(t, err)
	assert.Zero(t, st.Size())
}

func TestWriteNames_TruncatesAndIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "names", []byte("left over\nfrom a longer run\n"), 0o644))

	names := []string{"detector axis id", "incident wavelength"}
	require.NoError(t, WriteNames(fs, "names", names))
	first, err := afero.ReadFile(fs, "names")
	require.NoError(t, err)

	require.NoError(t, WriteNames(fs, "names", names))
	second, err := afero.ReadFile(fs, "names")
	require.NoError(t, err)

	assert.Equal(t, "detector axis id\nincident wavelength\n", string(first))
	assert.Equal(t, first, second)
}

func TestWriteNames_UnwritableFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := WriteNames(fs, "names", []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "names")
}

func TestReadNames_TrimsAndSkipsBlank(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "names", []byte("  wavelength id \n\nfull simple data\r\n"), 0o644))

	got, err := ReadNames(fs, "names")
	require.NoError(t, err)
	assert.Equal(t, []string{"wavelength id", "full simple data"}, got)
}

func TestReadNames_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	in := []string{"full simple data scan id", "data axis precedence", "detector axis vector mcstas"}
	require.NoError(t, WriteNames(fs, "names", in))

	out, err := ReadNames(fs, "names")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadNames_Missing(t *testing.T) {
	_, err := ReadNames(afero.NewMemMapFs(), "nope")
	require.Error(t, err)
}
