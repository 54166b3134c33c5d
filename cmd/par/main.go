package main

import "github.com/partools/par/cmd"

func main() {
	cmd.Execute()
}
