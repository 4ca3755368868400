// Command freebsd-godate fetches, merges, and installs FreeBSD binary
// updates.
package main

import "github.com/yonasBSD/freebsd-godate/internal/cli"

func main() {
	cli.Execute()
}
