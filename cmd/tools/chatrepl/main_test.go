package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/docs-assistant/backend/internal/model/catalog"
)

func TestREPLRendersReplies(t *testing.T) {
	var out bytes.Buffer
	opts := &replOptions{
		minDelay: time.Millisecond,
		maxDelay: time.Millisecond,
		logLevel: "error",
	}

	err := runREPL(context.Background(), strings.NewReader("Hello\n\n"), &out, opts)
	require.NoError(t, err)

	text := out.String()
	cat := catalog.Default()
	assert.Contains(t, text, "[assistant] "+cat.Greeting)
	assert.Contains(t, text, "assistant is typing...")
	assert.Contains(t, text, "[assistant] "+cat.Replies()["greeting"])
}

func TestREPLFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--min-delay=5ms", "--max-delay=10ms", "--seed=3", "--failure-rate=0.5"}))

	minDelay, err := cmd.Flags().GetDuration("min-delay")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, minDelay)
	assert.True(t, cmd.Flags().Changed("seed"))

	rate, err := cmd.Flags().GetFloat64("failure-rate")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rate)
}

func TestREPLRejectsBadDelays(t *testing.T) {
	var out bytes.Buffer
	opts := &replOptions{
		minDelay: time.Second,
		maxDelay: time.Millisecond,
		logLevel: "error",
	}
	require.Error(t, runREPL(context.Background(), strings.NewReader(""), &out, opts))
}

func TestREPLStopsCleanlyOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	opts := &replOptions{
		minDelay: time.Millisecond,
		maxDelay: time.Millisecond,
		logLevel: "error",
	}
	require.NoError(t, runREPL(ctx, strings.NewReader("Hello\nrobot\n"), &out, opts))
	assert.Contains(t, out.String(), "[assistant] "+catalog.Default().Greeting)
}
