package main

import "github.com/coilforge/coilqa-cli/cmd"

func main() {
	cmd.Execute()
}
