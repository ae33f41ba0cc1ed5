package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplepos/internal/config"
	"simplepos/internal/intake"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	require.Error(t, err)

	err = validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AppEnv: "production", AllowedOrigin: "*"})
	require.Error(t, err)
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef", AllowedOrigin: "https://pos.example"})
	require.NoError(t, err)
}

func TestBuildIntakeDrivers(t *testing.T) {
	ctx := context.Background()

	forms, err := buildIntake(ctx, config.Config{IntakeDriver: "form", SubmitTimeoutSeconds: 5}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &intake.HTTPSink{}, forms.sale)
	assert.IsType(t, &intake.FallbackSink{}, forms.adjustment)
	assert.NotNil(t, forms.detached)
	assert.Nil(t, forms.repo)

	mem, err := buildIntake(ctx, config.Config{IntakeDriver: "memory"}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, mem.repo)
	assert.IsType(t, &intake.RecordSink{}, mem.sale)

	lite, err := buildIntake(ctx, config.Config{IntakeDriver: "sqlite3", IntakeDSN: filepath.Join(t.TempDir(), "intake.db")}, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, lite.closers, 1)
	t.Cleanup(func() { _ = lite.closers[0]() })

	_, err = buildIntake(ctx, config.Config{IntakeDriver: "pgx"}, zerolog.Nop())
	require.Error(t, err)

	_, err = buildIntake(ctx, config.Config{IntakeDriver: "kafka"}, zerolog.Nop())
	require.Error(t, err)
}
