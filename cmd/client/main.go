package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/reefrush/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := injector.InitializeClient(injector.ConfigPath(*configPath))
	if err != nil {
		fmt.Println("Error creating client:", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	if err = c.Connect(ctx); err != nil {
		fmt.Println("Error connecting:", err)
		os.Exit(1)
	}
	if err = c.Run(ctx); err != nil {
		fmt.Println("Connection lost:", err)
		os.Exit(1)
	}
}
