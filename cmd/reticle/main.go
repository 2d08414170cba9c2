package main

import "github.com/ayusman/reticle/internal/cli"

func main() {
	cli.Execute()
}
