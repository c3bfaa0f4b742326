package main

import "github.com/nhle/campus-notifier/cmd/notifier/command"

func main() {
	command.Execute()
}
