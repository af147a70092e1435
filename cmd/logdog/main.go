package main

import "github.com/charliek/logdog/internal/cli"

func main() {
	cli.Execute()
}
