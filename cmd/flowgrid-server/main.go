package main

import (
	"github.com/aliciakaith/flowgrid/pkg/cli/cmd"
)

func main() {
	cmd.Execute()
}
