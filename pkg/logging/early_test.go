package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarlyLog(t *testing.T) {
	var buf bytes.Buffer
	l := &EarlyLog{service: "admin-service", out: &buf}

	l.Error("Failed to load config: %v", "missing file")

	assert.Contains(t, buf.String(), "ERROR [admin-service] Failed to load config: missing file")
}
