package main

import "msgsort/cmd"

func main() {
	cmd.Execute()
}
