// Command leaporm is the LeapORM tooling CLI.
package main

import "github.com/leapstack-labs/leaporm/internal/cli"

func main() {
	cli.Execute()
}
