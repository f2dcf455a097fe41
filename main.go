package main

import "github.com/audiolibrelab/screencap/cmd"

func main() {
	cmd.Execute()
}
