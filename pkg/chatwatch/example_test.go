package chatwatch_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/requestify/requestify-go/pkg/chatwatch"
	"github.com/requestify/requestify-go/pkg/chatwatch/event"
)

// ExampleWatch watches a console log for chat messages.
func ExampleWatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, errs, err := chatwatch.Watch(ctx,
		chatwatch.WithPath("/path/to/console.log"),
		chatwatch.WithIncludeTypes(event.Chat),
	)
	if err != nil {
		log.Fatal(err)
	}

	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			fmt.Printf("%s: %s\n", ev.Username, ev.Message)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("watch error: %v", err)
		}
	}
}
