package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/rapvox/internal/protocol"
	"github.com/MrWong99/rapvox/pkg/provider/stt"
)

// Context is the pair of recognizers a session switches between: a
// grammar-constrained one for commands and an open-dictation one for
// freestyle. Only the recognizer of the active mode receives audio.
type Context struct {
	Command   stt.Recognizer
	Freestyle stt.Recognizer
}

// NewContext creates both recognizers from p. The command recognizer is
// restricted to grammar; a nil or empty grammar yields free dictation.
func NewContext(ctx context.Context, p stt.Provider, base stt.StreamConfig, grammar []string) (*Context, error) {
	cmdCfg := base
	cmdCfg.Grammar = grammar
	cmd, err := p.NewRecognizer(ctx, cmdCfg)
	if err != nil {
		return nil, fmt.Errorf("session: create command recognizer: %w", err)
	}

	freeCfg := base
	freeCfg.Grammar = nil
	free, err := p.NewRecognizer(ctx, freeCfg)
	if err != nil {
		_ = cmd.Close()
		return nil, fmt.Errorf("session: create freestyle recognizer: %w", err)
	}
	return &Context{Command: cmd, Freestyle: free}, nil
}

// For returns the recognizer that serves mode.
func (c *Context) For(mode protocol.Mode) stt.Recognizer {
	if mode == protocol.ModeFreestyle {
		return c.Freestyle
	}
	return c.Command
}

// Reset clears the in-flight utterance of both recognizers.
func (c *Context) Reset() error {
	return errors.Join(c.Command.Reset(), c.Freestyle.Reset())
}

// Close releases both recognizers.
func (c *Context) Close() error {
	return errors.Join(c.Command.Close(), c.Freestyle.Close())
}
