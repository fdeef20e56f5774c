package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/toolwire/toolwire/config"
	"github.com/toolwire/toolwire/jsonrpc"
	"github.com/toolwire/toolwire/mcp"
	"github.com/toolwire/toolwire/tools"
)

const version = "0.3.0"

// toolworker serves the built-in tool registry over stdio. Stdout
// carries protocol frames only; everything diagnostic goes to stderr.
func main() {
	traceFlag := flag.Bool("trace", false, "Log protocol activity to stderr")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	registry := tools.NewRegistry(
		tools.GetAlertsDefinition,
		tools.GetForecastDefinition,
		tools.SearchDocsDefinition,
		tools.NewReadFileDefinition(tools.FilesystemAccess{
			Hidden:   cfg.FilesystemAccess.Hidden,
			ReadOnly: cfg.FilesystemAccess.ReadOnly,
		}),
		tools.NewExecuteCommandDefinition(cfg.AllowedCommands),
	)

	var opts []mcp.ServerOption
	if *traceFlag {
		opts = append(opts, mcp.WithServerTrace(func(msg string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", time.Now().Format("15:04:05.000"), msg)
		}))
	}

	server := mcp.NewServer("toolworker", version, registry, opts...)
	conn := jsonrpc.NewConn(os.Stdin, os.Stdout)

	if err := server.Serve(context.Background(), conn); err != nil {
		fmt.Fprintf(os.Stderr, "Worker stopped with an error: %+v\n", err)
		os.Exit(1)
	}
}
