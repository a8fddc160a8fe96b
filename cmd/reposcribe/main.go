// Package main provides the entrypoint for the reposcribe CLI.
package main

import "github.com/reposcribe/reposcribe/cmd/reposcribe/app"

func main() {
	app.Execute()
}
