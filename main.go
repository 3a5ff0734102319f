package main

import "github.com/ubunatic/clamshell/cmd"

func main() {
	cmd.Execute()
}
