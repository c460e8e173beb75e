package main

import "github.com/polyquant/polyscalp/cmd"

func main() {
	cmd.Execute()
}
