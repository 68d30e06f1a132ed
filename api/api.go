package api

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
}

// NewAPIServer creates the fiber app; views renders invoice and certificate previews
func NewAPIServer(listenAddress string, views fiber.Views) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:   "coursehub-api",
			Views:     views,
			BodyLimit: 512 * 1024 * 1024, // lesson uploads
		}),
		listenAddress: listenAddress,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	log.Println("Starting API Server")
	log.Printf("Listening on %s", s.listenAddress)

	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}
