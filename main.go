package main

import "github.com/zabe-dev/smuggler/cmd"

func main() {
	cmd.Execute()
}
