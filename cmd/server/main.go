package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/dinehub/ops-api/internal/config"
	"github.com/dinehub/ops-api/internal/database"
	"github.com/dinehub/ops-api/internal/router"
	"github.com/dinehub/ops-api/internal/service"
	"github.com/dinehub/ops-api/internal/ws"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		log.Fatalf("invalid TAX_RATE %q: %v", cfg.TaxRate, err)
	}
	deliveryFee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		log.Fatalf("invalid DELIVERY_FEE %q: %v", cfg.DeliveryFee, err)
	}
	pricing := service.PricingConfig{TaxRate: taxRate, DeliveryFee: deliveryFee}

	pool, err := database.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()
	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	r := router.New(cfg, queries, pricing, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
