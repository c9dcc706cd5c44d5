package config

import (
	"github.com/Daclify/daclifycore/internal/domain"
	"github.com/Daclify/daclifycore/internal/hooks"
)

// HookSource turns the configured hook table into the dispatcher's
// registration source.
func HookSource(entries []HookConfig) hooks.StaticSource {
	source := make(hooks.StaticSource, len(entries))
	for _, entry := range entries {
		op := domain.Account(entry.Operation)
		source[op] = hooks.Hook{
			Operation: op,
			Action:    domain.Account(entry.Action),
			Enabled:   entry.Enabled,
		}
	}
	return source
}
