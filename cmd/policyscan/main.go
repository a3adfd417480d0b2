// Package main is the entry point for the policyscan executable.
package main

import "github.com/govchat-nl/policyscan/cmd"

func main() {
	cmd.Execute()
}
