package main

import "github.com/prepsphere/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
