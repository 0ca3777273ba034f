package main

import (
	"fmt"
	"os"

	"wikiguard/cmd/bootstrap"
	"wikiguard/src/server"
)

// main runs the HTTP server. Maintenance tasks live in cmd/.
func main() {
	app, err := bootstrap.New()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	os.Exit(app.Run(func(a *bootstrap.App) error {
		return server.StartServer(server.GetConfig().Port, server.NewRouter(a.Pipeline, a.Exceptions))
	}))
}
