// Command r2ex runs the branch-to-build automation: ingress, dispatch,
// workflow orchestration and build notifications.
package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/dipmndl/cdk-digital-twin-r2ex/cmd/r2ex/commands"
	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("r2ex"),
		kong.Description("Branch-triggered build automation for Digital Twin release branches."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := ctx.Run(&commands.Global{In: os.Stdin, Out: os.Stdout}, &cli)
	if err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
	}
}
