package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	rag "github.com/knowbase/kb-assistant"
	"github.com/knowbase/kb-assistant/common/logger"
	"github.com/knowbase/kb-assistant/config"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the configuration file")
		mcpMode    = flag.Bool("mcp", false, "serve the MCP protocol on stdio instead of HTTP")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	if err := run(resolveConfigPath(*configPath, explicit), *mcpMode, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "kb-assistant: %v\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath drops the default config path when no file exists there,
// so a fresh checkout starts on built-in defaults. An explicitly given path
// must exist and is passed through as-is.
func resolveConfigPath(path string, explicit bool) string {
	if explicit {
		return path
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ""
	}
	return path
}

func run(configPath string, mcpMode bool, logLevel string) error {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger.SetLevel(logger.ParseLevel(logLevel))

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config failed, err: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client, err := rag.NewRAGClient(cfg)
	if err != nil {
		return fmt.Errorf("create client failed, err: %w", err)
	}
	defer client.Close()

	if mcpMode {
		logger.Infof("starting MCP server on stdio")
		return rag.ServeStdio(client)
	}
	return rag.NewServer(client).ListenAndServe(cfg.Server.Port)
}
