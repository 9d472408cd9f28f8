// Command nxtestfile creates testfiles/nexus-multi-image.nx from the CIF
// multi-image test file. Run it from the repository root.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"formattransformer/internal/logging"
	"formattransformer/internal/pipeline"
	"formattransformer/internal/testfile"
)

func main() {
	logging.InitFromEnv()

	r := pipeline.NewRunner(nil)
	err := testfile.Create(context.Background(), afero.NewOsFs(),
		testfile.DefaultBundleNames, testfile.DefaultRequest(), r)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nxtestfile:", err)
		os.Exit(1)
	}
}
