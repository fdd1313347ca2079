package main

import "github.com/pi-chan/claudeye/cmd"

func main() {
	cmd.Execute()
}
