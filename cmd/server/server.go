// Command server runs the matchbook TCP gateway: a single matching engine
// behind a fixed-size worker pool, accepting the wire protocol described in
// internal/net.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"matchbook/internal/engine"
	"matchbook/internal/net"
	"matchbook/internal/server"
)

func main() {
	address := flag.String("address", "0.0.0.0", "address to listen on")
	port := flag.Int("port", 9001, "port to listen on")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book := engine.New(nil, nil)
	sup := server.New(ctx)
	gateway := net.New(*address, *port, book)

	sup.Go(func() error {
		return gateway.Run(sup)
	})

	log.Info().Str("address", *address).Int("port", *port).Msg("matchbook server starting")

	<-ctx.Done()
	gateway.Shutdown()
	book.Shutdown()

	if err := sup.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server shutdown with error")
	}
}
