package main

import (
	"flag"
	"fmt"
	log "log/slog"
	"os"

	"github.com/sharedcode/soi"
	"github.com/sharedcode/soi/restapi"
)

func main() {
	port := flag.Int("port", 8080, "HTTP listen port")
	flag.Parse()

	soi.ConfigureLogging()

	server := restapi.NewServer()
	defer server.Shutdown()

	addr := fmt.Sprintf(":%d", *port)
	log.Info("serving stores over HTTP", "addr", addr)
	if err := server.Router().Run(addr); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
