package main

import "github.com/pleme-io/releaseforge/pkg/cli"

func main() {
	cli.Execute()
}
