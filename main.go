package main

import "wormscan/cmd"

func main() {
	cmd.Execute()
}
