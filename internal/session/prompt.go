package session

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var ErrTooManyTries = errors.New("too many tries")

type promptValidator func(string) (bool, string)

type promptConfig struct {
	tries     int
	validator promptValidator
}

type PromptOpt func(*promptConfig)

func WithValidator(v promptValidator) PromptOpt {
	return func(cfg *promptConfig) {
		cfg.validator = v
	}
}

func WithMaxTries(i int) PromptOpt {
	return func(cfg *promptConfig) {
		cfg.tries = i
	}
}

// Prompt writes prompt and reads one line, repeating while the validator
// rejects the input.
func Prompt(r *bufio.Reader, w io.Writer, prompt string, opts ...PromptOpt) (string, error) {
	config := &promptConfig{}
	for _, opt := range opts {
		opt(config)
	}

	tries := 0
	for {
		if _, err := io.WriteString(w, prompt); err != nil {
			return "", err
		}

		input, err := readLine(r)
		if err != nil {
			return "", err
		}

		if config.validator != nil {
			if ok, msg := config.validator(input); !ok {
				_, _ = io.WriteString(w, msg)

				tries++
				if config.tries > 0 && config.tries == tries {
					return "", ErrTooManyTries
				}
				continue
			}
		}

		return input, nil
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
