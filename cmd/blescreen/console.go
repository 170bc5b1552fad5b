package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/chaz8081/blescreen/internal/notify"
	"github.com/chaz8081/blescreen/internal/registry"
	"github.com/chaz8081/blescreen/internal/screen"
)

// screenAPI is the part of screen.Screen the console drives.
type screenAPI interface {
	StartScanRequested()
	DevicePressed(id string)
	BluetoothToggled(on bool)
	View(ctx context.Context) (screen.View, error)
	Notices() []notify.Notice
}

// console is a line-oriented renderer: it reads commands, turns them into
// intents and prints views and notices.
type console struct {
	scr screenAPI
	in  io.Reader
	out io.Writer
	now func() time.Time

	color bool // colorize notices and states
}

func newConsole(scr screenAPI, in io.Reader, out io.Writer) *console {
	return &console{scr: scr, in: in, out: out, now: time.Now, color: !color.NoColor}
}

const helpText = `Commands:
  scan              start a scan
  list              show devices
  press <n|id>      connect or disconnect a device (by list number or ID)
  on | off          toggle Bluetooth
  help              show this help
  quit              exit`

// Run reads commands until quit, EOF or ctx is done.
func (c *console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		readErr <- sc.Err()
	}()

	fmt.Fprintln(c.out, helpText)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("reading commands: %w", err)
			}
			return nil
		case line := <-lines:
			if quit := c.exec(ctx, line); quit {
				return nil
			}
			c.printNotices()
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "scan":
		c.scr.StartScanRequested()
		fmt.Fprintln(c.out, "Scan requested")
	case "list", "ls":
		c.printView(ctx)
	case "press", "p":
		if len(fields) < 2 {
			fmt.Fprintln(c.out, "usage: press <n|id>")
			return false
		}
		id, err := c.resolve(ctx, fields[1])
		if err != nil {
			fmt.Fprintf(c.out, "press: %v\n", err)
			return false
		}
		c.scr.DevicePressed(id)
		fmt.Fprintf(c.out, "Pressed %s\n", id)
	case "on":
		c.scr.BluetoothToggled(true)
		fmt.Fprintln(c.out, "Bluetooth on")
	case "off":
		c.scr.BluetoothToggled(false)
		fmt.Fprintln(c.out, "Bluetooth off")
	case "help", "?":
		fmt.Fprintln(c.out, helpText)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q (try help)\n", fields[0])
	}
	return false
}

// resolve maps a 1-based list number to a device ID; anything else is taken
// as an ID.
func (c *console) resolve(ctx context.Context, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	v, err := c.scr.View(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(v.Devices) {
		return "", fmt.Errorf("no device #%d (%d listed)", n, len(v.Devices))
	}
	return v.Devices[n-1].ID, nil
}

func (c *console) printView(ctx context.Context) {
	v, err := c.scr.View(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "list: %v\n", err)
		return
	}

	bt := "off"
	if v.Enabled {
		bt = "on"
	}
	scanning := "no"
	if v.Scanning {
		left := v.Session.StartedAt.Add(v.Session.Timeout).Sub(c.now()).Round(time.Second)
		if left < 0 {
			left = 0
		}
		scanning = fmt.Sprintf("yes (%s left)", left)
	}
	fmt.Fprintf(c.out, "Bluetooth: %s  Permission: %s  Scanning: %s\n", bt, v.Permission, scanning)

	if len(v.Devices) == 0 {
		fmt.Fprintln(c.out, "  (no devices)")
		return
	}
	for i, d := range v.Devices {
		state := strings.ToLower(d.State.String())
		switch d.State {
		case registry.Connected:
			state = c.paint(color.FgHiGreen, state)
		case registry.Connecting, registry.Disconnecting:
			state = c.paint(color.FgHiYellow, state)
		}
		fmt.Fprintf(c.out, "  %2d. %-20s %-20s %4d dBm  %s\n", i+1, d.Name, d.ID, d.RSSI, state)
	}
}

func (c *console) printNotices() {
	for _, n := range c.scr.Notices() {
		line := fmt.Sprintf("! %s: %s", n.Title, n.Message)
		switch n.Kind {
		case notify.KindSuccess:
			line = c.paint(color.FgHiGreen, line)
		case notify.KindPermissionDenied:
			line = c.paint(color.FgHiYellow, line)
		default:
			line = c.paint(color.FgHiRed, line)
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *console) paint(attr color.Attribute, s string) string {
	if !c.color {
		return s
	}
	p := color.New(attr)
	p.EnableColor()
	return p.Sprint(s)
}
