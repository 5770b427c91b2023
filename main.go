package main

import "github.com/kozaktomas/face-inbox/cmd"

func main() {
	cmd.Execute()
}
