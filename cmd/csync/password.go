package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"csync/internal/csyncerr"
)

// readPassword prompts on stderr and reads a password without local
// echo when stdin is a terminal, falling back to a single line read
// for scripted/piped invocations. Grounded on the prompt-then-zero
// pattern in grailbio-base/crypto/encryption/passwd/passwd.go, adapted
// from bcrypt's one-shot hash to csync's confirm-on-write flow.
func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, csyncerr.Wrap(csyncerr.IoError, "", fmt.Errorf("read password: %w", err))
		}
		return password, nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, csyncerr.Wrap(csyncerr.IoError, "", fmt.Errorf("read password: %w", err))
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return []byte(line), nil
}

// zero overwrites password material in place once it has been used to
// derive key material, so it does not linger in the process's heap
// longer than necessary.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// readNewPassword prompts twice and requires the two entries match,
// used before the first encrypt run creates a manifest.
func readNewPassword() ([]byte, error) {
	first, err := readPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	second, err := readPassword("Confirm password: ")
	if err != nil {
		zero(first)
		return nil, err
	}
	if string(first) != string(second) {
		zero(first)
		zero(second)
		return nil, csyncerr.New(csyncerr.PasswordMismatch, "password confirmation did not match")
	}
	zero(second)
	return first, nil
}
