package main

import "github.com/Allow2/brave-core-sub002/cmd/warden/cmd"

func main() {
	cmd.Execute()
}
