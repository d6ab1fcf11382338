package main

import "dependency-metrics/internal/cli"

func main() {
	cli.Execute()
}
