// Command biogit-server hosts repositories under a root directory over
// biogit's wire protocol (spec.md §4.10, §5). It is the out-of-scope
// process shell around the in-scope server session/dispatcher package:
// process-level flags only, not protocol logic.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/biogit/biogit/auth"
	"github.com/biogit/biogit/server"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type options struct {
	ListenAddr  string `short:"l" long:"listen" description:"address to listen on" default:":8421"`
	ReposRoot   string `short:"r" long:"repos-root" description:"directory containing hosted repositories" required:"true"`
	WorkerCount int64  `short:"w" long:"workers" description:"maximum concurrent sessions" default:"16"`
	TokenSecret string `short:"s" long:"token-secret" description:"secret used to sign session tokens" required:"true"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	registry := auth.NewRegistry()
	srv := server.New(server.Config{
		ListenAddr:  opts.ListenAddr,
		ReposRoot:   opts.ReposRoot,
		WorkerCount: opts.WorkerCount,
		TokenSecret: []byte(opts.TokenSecret),
	}, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Serve(ctx); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
