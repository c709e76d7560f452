package backend

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/mdcompile/internal/foundation/errors"
)

// Command runs an external program per attempt. The request is written to its
// stdin as JSON and its stdout is the response text.
type Command struct {
	argv []string
}

func NewCommand(argv []string) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.ConfigError("generation command is empty").
			WithContext("field", "generation.command").
			Build()
	}
	return &Command{argv: argv}, nil
}

func (c *Command) Name() string { return "command" }

func (c *Command) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "encode generation request").Build()
	}

	// #nosec G204 -- the command comes from the user's configuration
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(),
		"MDCOMPILE_UNIT="+req.Unit,
		"MDCOMPILE_ATTEMPT="+strconv.Itoa(req.Attempt),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransport(c.Name(), ctx.Err())
		}
		var exitErr *exec.ExitError
		b := errors.WrapError(err, errors.CategoryBackend, "generation command failed").Retryable()
		if !stderrors.As(err, &exitErr) {
			// The program could not be started; retrying will not help.
			b = errors.WrapError(err, errors.CategoryConfig, "start generation command").UserAction()
		}
		return nil, b.WithContext("command", c.argv[0]).
			WithContext("stderr", tail(stderr.String(), 512)).
			Build()
	}
	return &Response{Text: stdout.String()}, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
