package main

import "github.com/payfraud/riskpipe/cmd"

func main() {
	cmd.Execute()
}
