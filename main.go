package main

import (
	"github.com/zenvm/wasm-gas/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
