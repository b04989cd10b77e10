// Command vabindgen generates the libva cgo bindings from the vabind.yaml
// build descriptor, checks consuming packages against them and runs the CI
// health check.
package main

import (
	"context"

	"github.com/spf13/cobra"
)

func main() {
	cobra.CheckErr(NewCLI().ExecuteContext(context.Background()))
}
