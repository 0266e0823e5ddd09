package main

import "github.com/flowershow/contentsync/internal/cli"

func main() {
	cli.Execute()
}
