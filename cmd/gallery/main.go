package main

import "gallery/internal/cli"

func main() {
	cli.Execute()
}
