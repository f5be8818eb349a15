package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

const shellPrompt = "reelmatch> "

// cmdShell runs commands read line by line against one App, so the response
// cache and the model rotation survive between commands.
func cmdShell(ctx context.Context, c *cli, _ []string) error {
	if c.inShell {
		fmt.Fprintln(c.out, "Already in the shell.")
		return nil
	}
	c.inShell = true
	defer func() { c.inShell = false }()

	sc := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, shellPrompt)
		if !sc.Scan() {
			fmt.Fprintln(c.out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			printUsage(c.out)
			continue
		}
		args, err := splitArgs(line)
		if err != nil {
			fmt.Fprintln(c.errOut, "error:", err)
			continue
		}
		if err := c.dispatch(ctx, args); err != nil {
			c.reportError(err)
		}
	}
}
