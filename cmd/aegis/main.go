package main

import "github.com/aegis-authz/aegis/cmd/aegis/cmd"

func main() {
	cmd.Execute()
}
