package main

import "github.com/arrowhead-dev/llmbridge/cmd"

func main() {
	cmd.Execute()
}
