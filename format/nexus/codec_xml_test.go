package nexus

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Group {
	root := NewRoot()
	entry := root.AddGroup("entry", "NXentry")
	data := entry.AddGroup("data", "NXdata")
	data.SetAttr("axes", Values{Type: Char, Shape: []int{2}, Strings: []string{"x", "y z"}})
	img := &Dataset{Name: "data", Values: Values{Type: Int32, Shape: []int{2, 1, 2}, Int32s: []int32{1, -2, 3, 4}}}
	img.SetAttr("signal", charScalar("1"))
	data.AddDataset(img)
	beam := entry.AddGroup("beam", "NXbeam")
	wl := &Dataset{Name: "incident_wavelength", Values: Values{Type: Float64, Shape: []int{1}, Floats: []float64{0.71073}}}
	wl.SetAttr("units", charScalar("angstrom"))
	beam.AddDataset(wl)
	beam.AddDataset(&Dataset{Name: "count", Values: Values{Type: Int64, Ints: []int64{7}}})
	return root
}

func TestXMLCodec_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := CodecFor("xml")
	require.NoError(t, err)

	in := sampleTree()
	require.NoError(t, c.Save(fs, "out.nxs.xml", in))

	raw, err := afero.ReadFile(fs, "out.nxs.xml")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `<NXentry name="entry">`)
	assert.Contains(t, string(raw), `NAPItype="NX_INT32[2,1,2]"`)
	assert.Contains(t, string(raw), `<value>y z</value>`)

	out, err := c.Load(fs, "out.nxs.xml")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestXMLCodec_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, _ := CodecFor("xml")

	bad := NewRoot()
	bad.AddDataset(&Dataset{Name: "2theta", Values: Values{Type: Float64, Floats: []float64{1}}})
	assert.Error(t, c.Save(fs, "bad.xml", bad))

	short := NewRoot()
	short.AddDataset(&Dataset{Name: "x", Values: Values{Type: Float64, Shape: []int{3}, Floats: []float64{1}}})
	assert.Error(t, c.Save(fs, "short.xml", short))

	require.NoError(t, afero.WriteFile(fs, "wrong.xml", []byte(`<NXentry/>`), 0o644))
	_, err := c.Load(fs, "wrong.xml")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "type.xml", []byte(`<NXroot><x NAPItype="NX_UINT8">1</x></NXroot>`), 0o644))
	_, err = c.Load(fs, "type.xml")
	assert.Error(t, err)

	_, err = c.Load(fs, "missing.xml")
	assert.Error(t, err)
}

func TestCodecFor_Unknown(t *testing.T) {
	_, err := CodecFor("netcdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}
