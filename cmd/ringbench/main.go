package main

import "github.com/btracey/ringbench/cmd/ringbench/cmd"

func main() {
	cmd.Execute()
}
