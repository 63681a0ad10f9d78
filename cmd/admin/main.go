package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/clusterdeck/internal/admin"
	"github.com/dmitrijs2005/clusterdeck/internal/server/config"
)

func main() {

	command := "help"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := admin.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx, command); err != nil {
		log.Printf("%v", err)
		app.Close()
		os.Exit(1)
	}

}
