package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/adpilot/agents"
)

// configKeys is the settable surface of the config file. Keys outside this
// map are rejected rather than silently written.
var configKeys = map[string]string{
	"server.addr":      "HTTP listen address",
	"database.path":    "SQLite database file",
	"llm.endpoint":     "completion backend endpoint",
	"llm.model":        "completion model name",
	"engine.max_steps": "reasoning steps per turn",
	"engine.persona":   "persona bundle for the engine",
	"engine.debug":     "verbose engine logging",
	"workspace.id":     "default workspace",
}

func sortedConfigKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for key := range configKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// newConfigCmd registers subcommands that inspect or mutate the config file.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or modify the adpilot config file",
	}
	cmd.AddCommand(newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

// newConfigGetCmd prints one effective setting, or all of them. Effective
// means defaults overlaid with the config file, the same view the engine
// boots with.
func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [key]",
		Short: "Show effective settings (all, or one dotted key)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := globalCfg
			if cfg == nil {
				cfg = DefaultConfig()
			}
			data, err := configAsMap(cfg)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				for _, key := range sortedConfigKeys() {
					value, _ := getConfigValue(data, key)
					fmt.Fprintf(cmd.OutOrStdout(), "%-17s %s\n", key, prettyValue(value))
				}
				return nil
			}
			key := args[0]
			if _, known := configKeys[key]; !known {
				return unknownConfigKey(key)
			}
			value, ok := getConfigValue(data, key)
			if !ok {
				return fmt.Errorf("key %s not set", key)
			}
			fmt.Fprintln(cmd.OutOrStdout(), prettyValue(value))
			return nil
		},
	}
}

// newConfigSetCmd validates and writes one dotted key to the config file.
func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Update a config value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, known := configKeys[key]; !known {
				return unknownConfigKey(key)
			}
			value := parseValue(args[1])
			if err := validateConfigValue(key, value); err != nil {
				return err
			}
			data, err := readConfigMap(cfgFile)
			if err != nil {
				return err
			}
			if err := setConfigValue(data, key, value); err != nil {
				return err
			}
			if err := writeConfigMap(cfgFile, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s updated\n", key)
			return nil
		},
	}
}

func unknownConfigKey(key string) error {
	return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(sortedConfigKeys(), ", "))
}

// validateConfigValue rejects values the engine could not boot with.
func validateConfigValue(key string, value interface{}) error {
	switch key {
	case "engine.persona":
		name, _ := value.(string)
		if _, ok := agents.Personas[name]; !ok {
			names := make([]string, 0, len(agents.Personas))
			for persona := range agents.Personas {
				names = append(names, persona)
			}
			sort.Strings(names)
			return fmt.Errorf("unknown persona %q (available: %s)", name, strings.Join(names, ", "))
		}
	case "engine.max_steps":
		n, ok := value.(int64)
		if !ok || n < 1 {
			return fmt.Errorf("engine.max_steps must be a positive integer")
		}
	case "engine.debug":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("engine.debug must be true or false")
		}
	}
	return nil
}

// configAsMap renders the typed config as a generic map for dotted lookups.
func configAsMap(cfg *Config) (map[string]interface{}, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}
