package main

import "github.com/encodeous/dvbench/cmd"

func main() {
	cmd.Execute()
}
