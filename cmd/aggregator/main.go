package main

import "github.com/kapu/roster-aggregator-go/cmd/aggregator/cmd"

func main() {
	cmd.Execute()
}
