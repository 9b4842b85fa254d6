package main

import "i4.energy/across/rak811/cmd/rak811/cmd"

var version string // set by the compiler

func main() {
	cmd.Execute(version)
}
