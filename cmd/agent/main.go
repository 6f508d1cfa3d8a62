package main

import (
	"os"

	"genflow-agent/internal/cli"
	"genflow-agent/pkg/log"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
