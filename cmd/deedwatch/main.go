package main

import "deedwatch/internal/cli"

func main() {
	cli.Execute()
}
