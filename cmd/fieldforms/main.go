// Command fieldforms manages field hierarchies, agents, forms and
// submissions, and serves them over HTTP and MCP.
package main

import "github.com/mesh-intelligence/fieldforms/internal/cli"

func main() {
	cli.Execute()
}
