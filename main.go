package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chrisuehlinger/vibeworker/worker"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: vibeworker <script.js> [json-payload...]")
		os.Exit(1)
	}

	script := os.Args[1]
	w := worker.New(filepath.Base(script), worker.WithLocalPath(filepath.Dir(script)))
	defer w.Terminate()

	events := make(chan worker.Event, 64)
	w.SetOnMessage(func(ev worker.Event) { events <- ev })
	w.SetOnError(func(ev worker.Event) { events <- ev })

	for _, arg := range os.Args[2:] {
		var payload any
		if err := json.Unmarshal([]byte(arg), &payload); err != nil {
			payload = arg
		}
		if err := w.PostMessage(payload); err != nil {
			fmt.Fprintln(os.Stderr, "postMessage:", err)
		}
	}

	// Print relayed events until the worker goes quiet.
	for {
		select {
		case ev := <-events:
			if ev.Type == worker.EventTypeError {
				fmt.Println("[error]", ev.Message)
			} else {
				out, _ := json.Marshal(ev.Data)
				fmt.Println(string(out))
			}
		case <-time.After(2 * time.Second):
			return
		}
	}
}
