package main

import "github.com/jmehdipour/payout-engine/cmd"

func main() {
	cmd.Execute()
}
