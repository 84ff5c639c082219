package generation

import "github.com/kiranshivaraju/pixgen/internal/config"

// OptionsFromConfig maps loaded configuration onto runner options.
// The mirror is left unset.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Config:      cfg.Generation,
		OutputDir:   cfg.Output.Dir,
		ServiceName: cfg.PixAI.ServiceName,
		Poll: PollOptions{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
			Timeout:     cfg.Poll.Timeout,
		},
	}
}
