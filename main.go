package main

import "bughunter/cli"

func main() {
	cli.Execute()
}
