package main

import "github.com/tidemill/promptcanvas/cmd"

func main() {
	cmd.Execute()
}
