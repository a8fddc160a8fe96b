// Package main provides the entrypoint for the reposcribe server.
package main

import "github.com/reposcribe/reposcribe/cmd/reposcribed/app"

func main() {
	app.Execute()
}
