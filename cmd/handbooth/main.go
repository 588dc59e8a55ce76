package main

import (
	"os"

	"github.com/ayusman/handbooth/internal/cli"
)

func main() {
	deps := &cli.Dependencies{}
	if err := cli.NewRootCmd(deps).Execute(); err != nil {
		cli.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}
