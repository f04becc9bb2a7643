package main

import (
	"log"

	"github.com/MrSnakeDoc/streamlinks/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ streamlinks failed to start: %v", err)
	}
}
