package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/octobocto/bip300301-enforcer/eventbus"
	"github.com/octobocto/bip300301-enforcer/rpcclient"
	"github.com/octobocto/bip300301-enforcer/store"
	"github.com/octobocto/bip300301-enforcer/syncdriver"
	"github.com/octobocto/bip300301-enforcer/zmqsub"
)

// Config is this process's effective configuration, grounded on the
// original's Config (node_rpc_user/password/cookie_path/host/port,
// data dir) and the teacher's flat cmd-level Config-struct-plus-flags
// idiom.
type Config struct {
	DataDir         string
	DbFile          string
	NodeRPCHost     string
	NodeRPCPort     uint16
	NodeRPCUser     string
	NodeRPCPass     string
	NodeCookie      string
	ZmqSequenceAddr string
}

func DefaultConfig() Config {
	return Config{
		DataDir:     "./enforcer-data",
		DbFile:      "enforcer.db",
		NodeRPCHost: "127.0.0.1",
		NodeRPCPort: 8332,
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("enforcer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "enforcer data directory")
	fs.StringVar(&cfg.DbFile, "db-file", defaults.DbFile, "store file name within datadir")
	fs.StringVar(&cfg.NodeRPCHost, "node-rpc-host", defaults.NodeRPCHost, "mainchain node RPC host")
	var rpcPort int
	fs.IntVar(&rpcPort, "node-rpc-port", int(defaults.NodeRPCPort), "mainchain node RPC port")
	fs.StringVar(&cfg.NodeRPCUser, "node-rpc-user", "", "mainchain node RPC username")
	fs.StringVar(&cfg.NodeRPCPass, "node-rpc-pass", "", "mainchain node RPC password")
	fs.StringVar(&cfg.NodeCookie, "node-rpc-cookie", "", "path to mainchain node's .cookie file")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.NodeRPCPort = uint16(rpcPort)

	if (cfg.NodeRPCUser == "") != (cfg.NodeRPCPass == "") {
		_, _ = fmt.Fprintln(stderr, "invalid config: node-rpc-user and node-rpc-pass must be set together")
		return 2
	}
	if (cfg.NodeRPCUser == "") == (cfg.NodeCookie == "") {
		_, _ = fmt.Fprintln(stderr, "invalid config: precisely one of node-rpc-user or node-rpc-cookie must be set")
		return 2
	}

	if err := printConfig(stdout, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if *dryRun {
		return 0
	}

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		_, _ = fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}
	db, err := store.Open(filepath.Join(cfg.DataDir, cfg.DbFile))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	defer db.Close()

	rpc, err := rpcclient.New(rpcclient.Config{
		Host:       cfg.NodeRPCHost,
		Port:       cfg.NodeRPCPort,
		User:       cfg.NodeRPCUser,
		Password:   cfg.NodeRPCPass,
		CookiePath: cfg.NodeCookie,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "rpc client init failed: %v\n", err)
		return 2
	}

	bus := eventbus.New()
	driver := syncdriver.New(db, rpc, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintln(stdout, "enforcer: running initial sync")
	if err := driver.InitialSync(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "initial sync failed: %v\n", err)
		return 1
	}

	sub, _ := zmqsub.NewChannelSubscriber(256)
	_, _ = fmt.Fprintln(stdout, "enforcer: steady state, waiting for notifications")
	if err := driver.Run(ctx, sub); err != nil && ctx.Err() == nil {
		_, _ = fmt.Fprintf(stderr, "sync driver stopped: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "enforcer: stopped")
	return 0
}

func printConfig(w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
