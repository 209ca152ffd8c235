// Package chatwatch watches a Source-engine console log file and emits
// parsed game events: chat messages, kills, connects, and suicides.
//
// The watcher tails the log like tail -f, surviving truncation and
// recreation of the file, and parses each complete line. Events and errors
// are delivered over channels that close when the context is cancelled or
// the watcher is closed.
//
// Basic usage:
//
//	events, errs, err := chatwatch.Watch(ctx,
//	    chatwatch.WithPath("/path/to/console.log"),
//	    chatwatch.WithIncludeTypes(event.Chat),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for ev := range events {
//	    fmt.Printf("%s: %s\n", ev.Username, ev.Message)
//	}
package chatwatch
