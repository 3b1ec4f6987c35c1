package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gregoryerrl/pgtoolset/config"
	"github.com/gregoryerrl/pgtoolset/databases"
	"github.com/gregoryerrl/pgtoolset/llm"
	mcpreg "github.com/gregoryerrl/pgtoolset/mcp"
	"github.com/gregoryerrl/pgtoolset/toolset"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file (optional; environment variables fill the gaps)")
	ask := flag.String("ask", "", "one-shot mode: answer a question and exit instead of serving")
	schema := flag.String("schema", "", "schema for one-shot mode (default: configured default schema)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := config.SetupLogger(cfg.Log)

	connector, err := databases.NewConnector(cfg.Database)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to database")
		os.Exit(1)
	}
	defer connector.Close()

	if cfg.LLM.APIKey == "" {
		log.Warn().Msg("no language-model credential configured; ask_data_insights will fail")
	}
	llmClient := llm.NewGemini(llm.GeminiConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})

	opts := []toolset.Option{toolset.WithLogger(log)}
	if cfg.Registry != "" {
		registry, err := toolset.LoadRegistry(cfg.Registry)
		if err != nil {
			log.Error().Err(err).Msg("failed to load statement registry")
			os.Exit(1)
		}
		log.Info().Strs("statements", registry.Names()).Msg("statement registry loaded")
		opts = append(opts, toolset.WithRegistry(registry))
	}

	ts := toolset.New(connector, llmClient, cfg.Database, opts...)

	if *ask != "" {
		runAsk(ts, *ask, *schema)
		return
	}

	s := server.NewMCPServer(
		"pgtoolset",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	mcpreg.RegisterTools(s, ts, log, cfg.Registry != "")
	log.Info().Str("engine", cfg.Database.Engine).Str("write_mode", string(cfg.Database.WriteMode)).Msg("serving")

	if err := server.ServeStdio(s); err != nil {
		log.Error().Err(err).Msg("server error")
	}
}

// runAsk answers a single question and prints the envelope to stdout, the
// same shape a tool caller would see.
func runAsk(ts *toolset.Toolset, question, schema string) {
	result, err := ts.AskDataInsights(context.Background(), question, schema)
	if err != nil {
		out, _ := json.MarshalIndent(map[string]any{"status": "error", "error": err.Error()}, "", "  ")
		fmt.Println(string(out))
		os.Exit(1)
	}

	envelope := map[string]any{}
	raw, _ := json.Marshal(result)
	_ = json.Unmarshal(raw, &envelope)
	envelope["status"] = "success"
	out, _ := json.MarshalIndent(envelope, "", "  ")
	fmt.Println(string(out))
}
