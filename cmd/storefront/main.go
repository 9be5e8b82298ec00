// cmd/storefront/main.go
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/infrastructure/database/redis"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/storefront"
	"github.com/your-org/storefront/internal/storefront/api"
	"github.com/your-org/storefront/internal/storefront/storage"
)

// Smoke run of the storefront cart engine against a running API. The
// session keeps its slots in Redis, so repeated runs reuse the guest cart.
func main() {
	productID := flag.Uint("product", 1, "product to configure")
	email := flag.String("email", "", "sign in after adding, to merge the guest cart")
	password := flag.String("password", "", "password for -email")
	flag.Parse()

	selection := map[string]string{}
	for _, arg := range flag.Args() {
		feature, value, ok := strings.Cut(arg, "=")
		if !ok || feature == "" {
			log.Fatalf("expected feature=value, got %q", arg)
		}
		selection[feature] = value
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logr := logger.New(cfg)

	redisClient, err := redis.NewConnection(cfg, logr)
	if err != nil {
		logr.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	st := storage.NewRedis(redisClient.GetClient(), cfg.Storefront.StoragePrefix)
	session := storefront.NewSession(api.New(cfg), st, cfg, logr)
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := session.Start(ctx); err != nil {
		logr.WithError(err).Fatal("failed to restore cart")
	}

	pid := uint(*productID)
	if _, err := session.LoadOptions(ctx, pid); err != nil {
		logr.WithError(err).Fatal("failed to load product options")
	}
	for feature, value := range selection {
		session.Select(pid, feature, value)
	}

	table, err := session.Availability(pid)
	if err != nil {
		logr.WithError(err).Fatal("failed to resolve availability")
	}
	for _, f := range table {
		for _, v := range f.Values {
			logr.WithFields(logrus.Fields{
				"feature":     f.Feature,
				"value":       v.Value,
				"stock":       v.Stock,
				"price_delta": v.PriceDelta,
				"disabled":    v.Disabled,
			}).Info("availability")
		}
	}

	line, err := session.AddToCart(ctx, pid)
	if err != nil {
		logr.WithError(err).Error("add to cart failed")
	} else {
		logr.WithFields(logrus.Fields{
			"key":      line.Key,
			"quantity": line.Quantity,
			"total":    line.Total,
		}).Info("added to cart")
	}

	if *email != "" {
		if _, err := session.SignIn(ctx, *email, *password); err != nil {
			logr.WithError(err).Fatal("sign in failed")
		}
	}

	view, err := session.ServerCart(ctx)
	if err != nil {
		logr.WithError(err).Fatal("failed to read server cart")
	}
	logr.WithFields(logrus.Fields{
		"key":   view.Key,
		"lines": len(view.Lines),
		"total": view.Totals.TotalAmount,
	}).Info("server cart")
}
