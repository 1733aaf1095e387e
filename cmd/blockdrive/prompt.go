package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

var errPasswordMismatch = errors.New("passwords do not match")

// promptPassword reads from --password-file, the terminal with echo off, or
// one line of piped stdin, in that order.
func (a *app) promptPassword(prompt string, confirm bool) (string, error) {
	if a.passwordFile != "" {
		data, err := os.ReadFile(a.passwordFile)
		if err != nil {
			return "", fmt.Errorf("read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := a.readLine()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return line, nil
	}

	fmt.Fprint(a.errOut, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(a.errOut, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(a.errOut)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if string(first) != string(second) {
		return "", errPasswordMismatch
	}
	return string(first), nil
}

// readLine reads one line from stdin without its terminator. A final line
// without a newline is returned as is.
func (a *app) readLine() (string, error) {
	if a.lines == nil {
		a.lines = bufio.NewReader(a.in)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
