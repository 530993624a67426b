package main

import "github.com/patternscope/patternscope/cmd"

func main() {
	cmd.Execute()
}
