// Command test-scan is a manual test for the BLE stack.
// Run it to print every advertisement seen during one scan.
// Press Ctrl+C to stop early.
//
// Usage:
//
//	go run ./cmd/test-scan [--duration 10s] [--service <uuid>]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/blescreen/internal/ble"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "how long to scan")
	service := flag.String("service", "", "only report devices advertising this service UUID")
	flag.Parse()

	stack := ble.NewTinyGoStack()
	if err := stack.Start(ble.StartOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enable adapter: %v\n", err)
		os.Exit(1)
	}

	seen := make(map[string]bool)
	sub := stack.AddListener(ble.PeripheralDiscovered, func(ev ble.Event) {
		mark := " "
		if !seen[ev.ID] {
			seen[ev.ID] = true
			mark = "+"
		}
		name := ev.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%s %-20s %-24s %4d dBm\n", mark, ev.ID, name, ev.RSSI)
	})
	defer sub.Remove()

	// Handle Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := ble.ScanOptions{Duration: *duration, AllowDuplicates: true}
	if *service != "" {
		opts.ServiceUUIDs = []string{*service}
	}

	fmt.Printf("Scanning for %s...\n", *duration)
	fmt.Println("Press Ctrl+C to exit.")

	// Blocks until the duration elapses or ctx ends
	if err := stack.Scan(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Done. %d devices seen.\n", len(seen))
}
