// Command test-deliver is a manual test for text delivery.
// It waits 3 seconds, then delivers test text with the chosen mode.
// Focus a text editor before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-deliver [--mode paste|type|clipboard]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/whisperclip/internal/deliver"
)

func main() {
	mode := flag.String("mode", "paste", "delivery mode: paste, type or clipboard")
	flag.Parse()

	text := "Hello from whisperclip!"

	fmt.Printf("Will deliver %q using %q mode in 3 seconds...\n", text, *mode)
	fmt.Println("Focus a text editor now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
	d := deliver.New(*mode, log)
	if err := d.Deliver(deliver.Sanitize(text)); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("\nDone!")
}
