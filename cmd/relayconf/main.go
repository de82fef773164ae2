package main

import "relayconf/internal/cli"

func main() {
	cli.Execute()
}
