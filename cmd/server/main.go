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

	srv, err := injector.InitializeServer(injector.ConfigPath(*configPath))
	if err != nil {
		fmt.Println("Error creating server:", err)
		os.Exit(1)
	}

	if err = srv.ListenAndServe(ctx); err != nil {
		fmt.Println("Error running server:", err)
		os.Exit(1)
	}
}
