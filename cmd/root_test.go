package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"resolve", "geocode", "parcel", "zoning", "imagery", "history", "prune", "serve"} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestResolveRequiresAddressArg(t *testing.T) {
	err := resolveCmd.Args(resolveCmd, []string{})
	assert.Error(t, err)

	err = resolveCmd.Args(resolveCmd, []string{"10 Rue de Rivoli, Paris"})
	assert.NoError(t, err)
}
