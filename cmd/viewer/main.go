package main

import (
	"chat-relay/domain/event"
	relay "chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
)

// The viewer joins the relay as a regular session and prints get_chat_stats answers as tables.
func main() {
	addr := flag.String("addr", "ws://localhost:5000/ws", "Relay websocket endpoint")
	interval := flag.Duration("interval", 5*time.Second, "Refresh interval, 0 prints once")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	request, _ := json.Marshal(relay.Frame{Event: event.GetChatStats})
	ask := func() {
		if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
			log.Fatalf("Failed to request stats: %v", err)
		}
	}
	ask()

	var ticker <-chan time.Time
	if *interval > 0 {
		t := time.NewTicker(*interval)
		defer t.Stop()
		ticker = t.C
	}

	frames := make(chan relay.Frame)
	go read(conn, frames)

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				color.Red.Println("Connection closed by the relay")
				os.Exit(1)
			}
			switch f.Event {
			case event.ChatStatsResponseName:
				var stats event.ChatStatsResponse
				if err := json.Unmarshal(f.Data, &stats); err != nil {
					color.Red.Printf("Invalid stats payload: %v\n", err)
					continue
				}
				header := fmt.Sprintf("  ====== %s | %s ======", *addr, time.Now().Format(time.TimeOnly))
				fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(header))
				internal.RenderStats(os.Stdout, stats)
				fmt.Println()
				if ticker == nil {
					return
				}
			case event.ConnectionRejectedName, event.ErrorName:
				color.Red.Printf("%s: %s\n", f.Event, string(f.Data))
				if f.Event == event.ConnectionRejectedName {
					os.Exit(1)
				}
			}
		case <-ticker:
			ask()
		}
	}
}

func read(conn *websocket.Conn, frames chan<- relay.Frame) {
	defer close(frames)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f relay.Frame
		if err = json.Unmarshal(raw, &f); err != nil {
			continue
		}
		frames <- f
	}
}
