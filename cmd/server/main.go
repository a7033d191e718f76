// Package main implements the entry point for the Lumen API server, which
// tracks asynchronous image generation jobs against an upstream model
// provider and serves their status over HTTP.
package main

import (
	"log"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
