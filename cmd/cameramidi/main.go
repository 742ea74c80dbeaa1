package main

import "github.com/bryanchriswhite/cameramidi/cmd/cameramidi/commands"

func main() {
	commands.Execute()
}
