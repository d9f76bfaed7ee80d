package cmd

import (
	"log"

	"github.com/lexcodex/adpilot/agents"
	"github.com/lexcodex/adpilot/llm"
	"github.com/lexcodex/adpilot/persistence"
	"github.com/lexcodex/adpilot/server"
	"github.com/lexcodex/adpilot/tools"
)

// openStore opens the SQLite store at the configured path.
func openStore(cfg *Config) (*persistence.SQLiteStore, error) {
	return persistence.NewSQLiteStore(cfg.Database.Path)
}

// buildEngine assembles the orchestration stack from config.
func buildEngine(cfg *Config, store persistence.Store) (*server.Engine, error) {
	client := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.Model)
	client.Debug = cfg.Engine.Debug

	deps := tools.Deps{Store: store, Model: client}
	if cfg.Engine.Debug {
		deps.Model = llm.NewLoggedModel(client, log.Default())
	}

	return server.NewEngine(deps, agents.Config{
		Model:    cfg.LLM.Model,
		MaxSteps: cfg.Engine.MaxSteps,
		Persona:  cfg.Engine.Persona,
		Debug:    cfg.Engine.Debug,
	})
}

// buildMigrator wires the legacy migration batch with a model-backed
// summarizer.
func buildMigrator(cfg *Config, store persistence.Store) *persistence.Migrator {
	client := llm.NewClient(cfg.LLM.Endpoint, cfg.LLM.Model)
	summarizer := persistence.SummarizerFunc(agents.SummarizeTranscript(client))
	migrator := persistence.NewMigrator(store, summarizer)
	migrator.SetDebug(cfg.Engine.Debug)
	return migrator
}
