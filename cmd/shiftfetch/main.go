package main

import "github.com/vietddude/shiftfetch/internal/cli"

func main() {
	cli.Execute()
}
