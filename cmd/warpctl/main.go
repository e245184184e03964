package main

import (
	"context"
	"fmt"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/warp/internal/pkg/presentation/cli"
)

func main() {
	rootCmd := cli.NewRootCmd(buildinfo.SourceVersion())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
