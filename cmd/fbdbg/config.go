package main

import (
	"github.com/spf13/viper"

	"github.com/JoshLWScott/fbdbg/internal/adapterfactory"
)

// loadAdapterConfigs reads the "adapters" key from viper into a slice of
// adapterfactory.Config. An empty/missing key is not an error: the launch
// and attach subcommands fall back to a single "dlv"-shaped default so the
// tool is usable with zero configuration against Delve.
func loadAdapterConfigs() ([]adapterfactory.Config, error) {
	if !viper.IsSet("adapters") {
		return defaultAdapterConfigs(), nil
	}
	var configs []adapterfactory.Config
	if err := viper.UnmarshalKey("adapters", &configs); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return defaultAdapterConfigs(), nil
	}
	return configs, nil
}

// defaultAdapterConfigs describes Delve's own DAP server, the same
// invocation go-delve-mcp-dap-server/tools.go spawns ("dlv dap --listen
// :PORT"), so fbdbg works against Go programs without a config file.
func defaultAdapterConfigs() []adapterfactory.Config {
	return []adapterfactory.Config{
		{
			Type:        "dlv",
			Command:     "dlv",
			Args:        []string{"dap", "--listen", "{port}", "--log", "--log-output", "dap"},
			Listen:      "{port}",
			ReadyBanner: "DAP server listening at",
			Port:        "9091",
		},
	}
}
