package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/helmfile2compose/kubernetes2simple/internal/cli"
	"github.com/helmfile2compose/kubernetes2simple/pkg/version"
)

func main() {
	err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(),
		fang.WithVersion(version.GetVersion()),
		fang.WithErrorHandler(cli.ErrorHandler),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err != nil {
		os.Exit(1)
	}
}
