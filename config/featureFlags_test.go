package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvFlag(t *testing.T) {
	const key = "PROGNOSIS_TEST_FLAG"

	t.Setenv(key, "")
	assert.False(t, envFlag(key, false))
	assert.True(t, envFlag(key, true))

	for _, v := range []string{"1", "true", "TRUE", " yes ", "y", "on"} {
		t.Setenv(key, v)
		assert.True(t, envFlag(key, false), v)
	}
	for _, v := range []string{"0", "false", "off", "nope"} {
		t.Setenv(key, v)
		assert.False(t, envFlag(key, true), v)
	}
}

func TestWorkerEnabled_DefaultsOn(t *testing.T) {
	t.Setenv("WORKER_ENABLED", "")
	assert.True(t, WorkerEnabled())
	t.Setenv("WORKER_ENABLED", "false")
	assert.False(t, WorkerEnabled())
}
