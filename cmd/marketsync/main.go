package main

import "github.com/andrzw/marketsync/internal/cli"

func main() {
	cli.Execute()
}
