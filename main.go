package main

import "logcount/cmd"

func main() {
	cmd.Execute()
}
