package main

import "loraimg/cmd"

func main() {
	cmd.Execute()
}
