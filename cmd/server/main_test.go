package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/borelli28/siembackend/internal/config"
	"github.com/borelli28/siembackend/internal/rules"
)

func TestTargetsFromRules_DedupesByAccount(t *testing.T) {
	loaded := []rules.Rule{
		{ID: "1", AccountID: "acct-a"},
		{ID: "2", AccountID: "acct-a"},
		{ID: "3", AccountID: "acct-b"},
	}

	targets := targetsFromRules(loaded)
	assert.Len(t, targets, 2)

	seen := make(map[string]bool)
	for _, tg := range targets {
		seen[tg.AccountID] = true
		assert.Equal(t, "*", tg.HostID)
	}
	assert.True(t, seen["acct-a"])
	assert.True(t, seen["acct-b"])
}

func TestTargetsFromRules_EmptyCatalogueYieldsNoTargets(t *testing.T) {
	assert.Empty(t, targetsFromRules(nil))
}

func TestNewLogger_SelectsHandlerByFormat(t *testing.T) {
	pretty := newLogger(&config.Config{Server: config.ServerConfig{LogFormat: "pretty", LoggingLevel: "info"}})
	assert.NotNil(t, pretty)

	jsonLogger := newLogger(&config.Config{Server: config.ServerConfig{LogFormat: "json", LoggingLevel: "info"}})
	assert.NotNil(t, jsonLogger)
}
