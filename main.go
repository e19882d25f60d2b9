package main

import "github.com/kozaktomas/face-gate/cmd"

func main() {
	cmd.Execute()
}
