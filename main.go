package main

import "mcp-manager/cmd"

func main() {
	cmd.Execute()
}
