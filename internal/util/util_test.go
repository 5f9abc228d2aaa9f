package util

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderFieldsAlignsLabels(t *testing.T) {
	var buf bytes.Buffer
	RenderFields(&buf, []Field{
		{Label: "Version", Value: "dev"},
		{Label: "\033[36mOS\033[0m", Value: "linux"},
	})

	assert.Equal(t, "Version:  dev\n\033[36mOS\033[0m:       linux\n", buf.String())
}

func TestTerminalWriterTranslatesNewlinesWhenRaw(t *testing.T) {
	var buf bytes.Buffer
	w := &terminalWriter{w: &buf}

	n, err := w.Write([]byte("a\nb\n"))
	assert.NoError(t, err)
	assert.Equal(t, 4, n)

	w.raw = true
	n, err = w.Write([]byte("c\n"))
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "a\nb\nc\r\n", buf.String())
}

func TestIsVerbose(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"vkshow", "show"}
	assert.False(t, IsVerbose())

	os.Args = []string{"vkshow", "show", "--verbose"}
	assert.True(t, IsVerbose())
}
