package main

import "github.com/davarch/build-notifier/cmd/build-notifier/cli"

func main() {
	cli.Execute()
}
