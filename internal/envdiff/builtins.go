// SPDX-License-Identifier: MPL-2.0

package envdiff

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// bodyHandler implements the env_* and log_* builtins. Each env_* call is
// recorded, then rewritten into a builtin that mirrors the new value into
// the interpreter so later expansions see it.
type bodyHandler struct {
	rec       *Recorder
	logger    *slog.Logger
	utilities bool
}

func (h *bodyHandler) call(ctx context.Context, args []string) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}
	switch name := args[0]; name {
	case "env_set", "env_prepend", "env_append", "env_pop":
		if err := h.want(name, args, 3); err != nil {
			return nil, err
		}
		var err error
		switch name {
		case "env_set":
			err = h.rec.Set(args[1], args[2])
		case "env_prepend":
			err = h.rec.Prepend(args[1], args[2])
		case "env_append":
			err = h.rec.Append(args[1], args[2])
		case "env_pop":
			err = h.rec.Pop(args[1], args[2])
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return h.sync(args[1])
	case "env_unset":
		if err := h.want(name, args, 2); err != nil {
			return nil, err
		}
		if err := h.rec.Unset(args[1]); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return h.sync(args[1])
	case "log_debug", "log_info", "log_warn", "log_error":
		h.log(ctx, name, strings.Join(args[1:], " "))
		return []string{"true"}, nil
	}
	return args, nil
}

func (h *bodyHandler) want(name string, args []string, n int) error {
	if h.utilities {
		return fmt.Errorf("%s: %w", name, ErrUtilitiesMutate)
	}
	if len(args) != n {
		if n == 2 {
			return fmt.Errorf("usage: %s VARIABLE", name)
		}
		return fmt.Errorf("usage: %s VARIABLE VALUE", name)
	}
	return nil
}

func (h *bodyHandler) sync(variable string) ([]string, error) {
	v, ok := h.rec.Get(variable)
	if !ok {
		return []string{"unset", variable}, nil
	}
	q, err := syntax.Quote(v, syntax.LangBash)
	if err != nil {
		return nil, err
	}
	return []string{"eval", "export " + variable + "=" + q}, nil
}

func (h *bodyHandler) log(ctx context.Context, name, msg string) {
	level := slog.LevelInfo
	switch name {
	case "log_debug":
		level = slog.LevelDebug
	case "log_warn":
		level = slog.LevelWarn
	case "log_error":
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg)
}
