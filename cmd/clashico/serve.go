package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fortiblox/clash-ico/pkg/rpc"
)

// rpcServer builds the JSON-RPC server over the env's stores.
func (e *env) rpcServer() *rpc.Server {
	config := rpc.DefaultConfig()
	config.Addr = e.config.RPCAddr
	config.LogRequests = true

	// A nil *journal.Store must not become a non-nil rpc.Journal.
	var j rpc.Journal
	if e.journal != nil {
		j = e.journal
	}
	return rpc.New(config, e.db, j, e.log)
}

func cmdServe(e *env, args []string) error {
	fs := newFlagSet(e, "serve")
	addr := fs.String("addr", e.config.RPCAddr, "listen address")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			e.log.WithField("signal", sig.String()).Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	e.config.RPCAddr = *addr
	return e.rpcServer().Start(ctx)
}
