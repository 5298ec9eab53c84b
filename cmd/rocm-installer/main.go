package main

import "rocm-installer/internal/cli"

func main() {
	cli.Execute()
}
