// Package testfile produces the NeXus test file from its CIF equivalent:
// it writes the bundle-name list and hands one request to a driver.
package testfile

import (
	"context"

	"github.com/spf13/afero"

	"formattransformer/internal/bundle"
	"formattransformer/internal/jobspec"
)

// DefaultBundleNames is the fixed list the NeXus test file is built from.
var DefaultBundleNames = []string{
	"full simple data scan id",
	"full simple data",
	"data axis id",
	"data axis precedence",
	"detector axis id",
	"detector axis vector mcstas",
	"detector axis offset mcstas",
	"incident wavelength",
	"wavelength id",
}

// Driver performs one transformation.
type Driver interface {
	ManageTransform(ctx context.Context, req jobspec.Request) error
}

// DefaultRequest converts the multi-image CIF test file to NeXus.
func DefaultRequest() jobspec.Request {
	return jobspec.Request{
		BundleFile: "data_bundle_names",
		Source:     jobspec.Endpoint{Format: "cif", Path: "testfiles/multi-image-test.cif"},
		Target:     jobspec.Endpoint{Format: "nexus", Path: "testfiles/nexus-multi-image.nx"},
	}
}

// Create writes names to req.BundleFile and then calls the driver once.
// The driver is not called when the list cannot be written. The list file
// is left on disk.
func Create(ctx context.Context, fs afero.Fs, names []string, req jobspec.Request, d Driver) error {
	if err := bundle.WriteNames(fs, req.BundleFile, names); err != nil {
		return err
	}
	return d.ManageTransform(ctx, req)
}
