package main

import "harbor-hoover/internal/cli"

func main() {
	cli.Execute()
}
