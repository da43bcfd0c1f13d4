package session

import "github.com/moimapp/moim/internal/config"

const DefaultAccountName = "main"

// Resolve determines the active account name using precedence:
//  1. flagOverride (--account flag)
//  2. default_account from the config at configPath (empty = the global
//     config.toml)
//  3. "main"
func Resolve(flagOverride, configPath string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if configPath == "" {
		configPath = ConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err == nil && cfg.DefaultAccount != "" {
		return cfg.DefaultAccount
	}
	return DefaultAccountName
}
