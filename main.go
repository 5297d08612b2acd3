package main

import "breachbench/cmd"

func main() {
	cmd.Execute()
}
