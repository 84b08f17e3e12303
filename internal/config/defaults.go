package config

// Default returns the built-in configuration. Path fields stay unexpanded
// until normalize runs.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/seriate",
		},
		Feed: Feed{
			URL:            "https://feeds.megaphone.fm/GLT4787413333",
			TimeoutSeconds: 30,
		},
		LLM: LLM{
			PrimaryModel:   "gpt-5-nano",
			FallbackModel:  "gpt-4o-mini",
			TimeoutSeconds: 30,
			MaxCalls:       -1,
		},
		Grouping: Grouping{
			MaxGapDays: 14,
		},
		Logging: Logging{
			Format: "auto",
			Level:  "info",
		},
	}
}
