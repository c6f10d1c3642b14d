package main

import "segment-selector/cmd"

func main() {
	cmd.Execute()
}
