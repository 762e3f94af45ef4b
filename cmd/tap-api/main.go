package main

import (
	"flag"

	_ "go-stream-extract/docs"
	"go-stream-extract/internal/api"
	"go-stream-extract/internal/store"
	"go-stream-extract/pkg/router"
)

// @title Stream Extract API
// @version 1.0
// @description Control plane for multi-format, multi-protocol extraction runs
// @host localhost:8080
// @BasePath /api/v1
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "tap.db", "path to the sqlite database")
	flag.Parse()

	// Init DB
	if err := store.InitDB(*dbPath); err != nil {
		panic(err)
	}
	defer store.CloseDB()

	// Create router
	r := router.New()

	// Register API routes
	api.RegisterRoutes(r)

	// Start server
	r.Start(*addr)
}
