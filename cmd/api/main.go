package main

import (
	"log"
	"net/http"

	"discoveryflow/internal/api"
	"discoveryflow/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	s, err := api.NewServer(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	log.Printf("discovery api listening on %s endpoint_url=%q queue=%s", cfg.APIAddr, cfg.EndpointURL, cfg.TemporalTaskQueue)
	if err := http.ListenAndServe(cfg.APIAddr, s.Routes()); err != nil {
		log.Fatal(err)
	}
}
