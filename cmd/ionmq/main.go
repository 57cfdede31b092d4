package main

import (
	"fmt"
	"os"

	"github.com/anton-trapeznikov/ion-mq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
