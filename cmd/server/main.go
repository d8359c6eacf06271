package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/keeperhq/keeper/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := server.NewServer()
	r := srv.SetupRouter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		if err := srv.Pool.Run(ctx); err != nil {
			log.Printf("Buffer workers stopped: %v", err)
		}
	}()

	log.Printf("Starting server on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
