// Command companion runs the chat companion: the web server plus a few
// maintenance and debugging subcommands.
package main

import "github.com/scrypster/companion/internal/cli"

func main() {
	cli.Execute()
}
