package main

import (
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/coursehub-api/app"
)

func main() {
	// setup and run app; returns after a graceful shutdown
	if err := app.SetupAndRunServer(); err != nil {
		log.Fatalf("coursehub-api stopped: %v", err)
	}
	log.Info("coursehub-api shut down cleanly")
}
