package main

import "github.com/opencouncil/agendalens/cmd"

func main() {
	cmd.Execute()
}
