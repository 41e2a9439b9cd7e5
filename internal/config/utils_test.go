package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveEnvString_ResolvesWhenSet(t *testing.T) {
	t.Setenv("CFG_TEST_VAR", "resolved-value")
	assert.Equal(t, "resolved-value", resolveEnvString("os.environ/CFG_TEST_VAR"))
}

func TestResolveEnvString_EmptyWhenUnset(t *testing.T) {
	assert.Equal(t, "", resolveEnvString("os.environ/CFG_TEST_VAR_UNSET"))
}

func TestResolveEnvString_PassesThroughLiteral(t *testing.T) {
	assert.Equal(t, "literal", resolveEnvString("literal"))
}

func TestParseField_EmptyReturnsDefault(t *testing.T) {
	v, err := parseField("", 42, parseInt, "test.field")
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestParseField_ParsesValue(t *testing.T) {
	v, err := parseField("100", 0, parseInt, "test.field")
	assert.NoError(t, err)
	assert.Equal(t, 100, v)
}

func TestParseField_InvalidValueWrapsFieldPath(t *testing.T) {
	_, err := parseField("not-a-number", 0, parseInt, "test.field")
	assert.ErrorContains(t, err, "test.field")
}

func TestParseField_DurationParsing(t *testing.T) {
	v, err := parseField("5s", time.Second, time.ParseDuration, "test.duration")
	assert.NoError(t, err)
	assert.Equal(t, 5*time.Second, v)
}

func TestParseBool(t *testing.T) {
	v, err := parseBool("true")
	assert.NoError(t, err)
	assert.True(t, v)
}
