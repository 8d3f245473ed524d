package main

import "github.com/devicehub/devicehub/internal/cli"

func main() {
	cli.Execute()
}
