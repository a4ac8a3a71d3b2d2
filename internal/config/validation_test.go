// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() AppConfig {
	cfg := Defaults()
	cfg.Upstream.Endpoint = "https://cs.example.cognitiveservices.azure.com"
	cfg.Upstream.Key = "secret"
	return cfg
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateMissingCredentials(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	assert.True(t, errors.Is(err, ErrMissingEndpoint))
	assert.True(t, errors.Is(err, ErrMissingKey))
}

func TestValidateEndpointScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.Endpoint = "ftp://cs.example.com"
	assert.Error(t, cfg.Validate())
}

func TestValidateTrustedProxies(t *testing.T) {
	cfg := validConfig()
	cfg.TrustedProxies = "10.0.0.0/8, not-a-cidr"
	assert.Error(t, cfg.Validate())

	cfg.TrustedProxies = "10.0.0.0/8, 192.168.0.0/16"
	assert.NoError(t, cfg.Validate())
}

func TestValidateSamplingRate(t *testing.T) {
	cfg := validConfig()
	cfg.Telemetry.SamplingRate = 1.5
	assert.Error(t, cfg.Validate())
}
