package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel_UnknownDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel("not-a-level"))
}

func TestParseLevel_RecognizesKnownLevels(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("WARN"))
}
