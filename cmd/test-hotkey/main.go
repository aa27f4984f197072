// Command test-hotkey is a manual test for the global hotkey listener.
// Run it, press the configured combos and watch the actions print.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--record f9] [--reset f10] [--quit esc]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/hotkey"
)

func main() {
	record := flag.String("record", "f9", "record key combo")
	reset := flag.String("reset", "f10", "reset key combo")
	quit := flag.String("quit", "esc", "quit key combo")
	flag.Parse()

	fmt.Printf("Listening: record=%s reset=%s quit=%s\n", *record, *reset, *quit)
	fmt.Println("Press Ctrl+C to exit.")

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	listener := hotkey.NewListener(hotkey.Bindings{
		Record: *record,
		Reset:  *reset,
		Quit:   *quit,
	}, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	go func() {
		for a := range listener.Actions() {
			fmt.Printf(">>> %s\n", a)
		}
		fmt.Println("Action channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}
