package main

import "github.com/shabdalabs/shabda/internal/cli"

func main() {
	cli.Main()
}
