package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// errBack is returned by prompts when the user leaves a form with "-".
var errBack = errors.New("back")

type line struct {
	text string
	err  error
}

// console reads one line at a time on request. A request may stay pending
// while the caller waits on something else, such as countdown events.
type console struct {
	out      io.Writer
	password func() (string, error)

	requests chan struct{}
	lines    chan line
	pending  bool
}

func newConsole(in io.Reader, out io.Writer, password func() (string, error)) *console {
	c := &console{
		out:      out,
		password: password,
		requests: make(chan struct{}),
		lines:    make(chan line),
	}
	r := bufio.NewReader(in)
	go func() {
		for range c.requests {
			s, err := r.ReadString('\n')
			if err != nil && s != "" {
				err = nil
			}
			c.lines <- line{text: strings.TrimSpace(s), err: err}
		}
	}()
	return c
}

// next returns the channel the next line arrives on, asking the reader for
// one if no request is outstanding. Call consumed after receiving from it.
func (c *console) next() <-chan line {
	if !c.pending {
		c.requests <- struct{}{}
		c.pending = true
	}
	return c.lines
}

func (c *console) consumed() { c.pending = false }

func (c *console) readLine() (string, error) {
	l := <-c.next()
	c.consumed()
	return l.text, l.err
}

func (c *console) close() { close(c.requests) }

func (c *console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) println(args ...interface{}) {
	fmt.Fprintln(c.out, args...)
}

// ask prompts for a line. "-" aborts the current form with errBack.
func (c *console) ask(label string) (string, error) {
	c.printf("%s: ", label)
	s, err := c.readLine()
	if err != nil {
		return "", err
	}
	if s == "-" {
		return "", errBack
	}
	return s, nil
}

// askDefault is ask with a value kept when the answer is empty.
func (c *console) askDefault(label, def string) (string, error) {
	if def == "" {
		return c.ask(label)
	}
	s, err := c.ask(fmt.Sprintf("%s [%s]", label, def))
	if err != nil || s != "" {
		return s, err
	}
	return def, nil
}

// askInt prompts until the answer is an integer, or empty when def is used.
func (c *console) askInt(label string, def int) (int, error) {
	for {
		s, err := c.askDefault(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err == nil {
			return n, nil
		}
		c.println("Please enter a number.")
	}
}

// askPassword reads a password without echo when stdin is a terminal.
func (c *console) askPassword(label string) (string, error) {
	if c.password == nil || c.pending {
		return c.ask(label)
	}
	c.printf("%s: ", label)
	s, err := c.password()
	c.println()
	return s, err
}

// confirm asks a yes/no question. Anything but y/yes is no.
func (c *console) confirm(question string) (bool, error) {
	s, err := c.ask(question + " (y/N)")
	if err != nil {
		return false, err
	}
	s = strings.ToLower(s)
	return s == "y" || s == "yes", nil
}

// choose prints a numbered menu and returns the picked index. 0 is always
// the last entry (back, logout or quit).
func (c *console) choose(title string, items ...string) (int, error) {
	c.printf("\n=== %s ===\n", title)
	for i := 1; i < len(items); i++ {
		c.printf("  %d. %s\n", i, items[i])
	}
	c.printf("  0. %s\n", items[0])
	for {
		s, err := c.ask("Choose")
		if errors.Is(err, errBack) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(s)
		if convErr == nil && n >= 0 && n < len(items) {
			return n, nil
		}
		c.println("Invalid choice.")
	}
}

// pick asks for a 1-based row number of a listing with n rows. It returns
// -1 when the answer is empty.
func (c *console) pick(label string, n int) (int, error) {
	for {
		s, err := c.ask(label)
		if err != nil {
			return -1, err
		}
		if s == "" {
			return -1, nil
		}
		i, convErr := strconv.Atoi(s)
		if convErr == nil && i >= 1 && i <= n {
			return i - 1, nil
		}
		c.printf("Enter a number between 1 and %d.\n", n)
	}
}
