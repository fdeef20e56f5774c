package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toolwire/toolwire/proc"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ws_bridge exposes a stdio worker over a WebSocket: each text message
// from the socket is written to the worker as one frame, and each frame
// the worker emits is sent back as one text message. Every connection
// gets its own worker process.
func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ws_bridge [-addr :8080] <worker-script> [args...]")
		os.Exit(1)
	}
	script := flag.Arg(0)
	args := flag.Args()[1:]

	http.HandleFunc("/ws", handleWS(script, args))

	fmt.Printf("WebSocket bridge running on ws://localhost%s/ws\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

func handleWS(script string, args []string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("Upgrade error:", err)
			return
		}
		defer conn.Close()

		worker, err := proc.Spawn(script, args, os.Stderr)
		if err != nil {
			log.Println("Error starting worker:", err)
			return
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := worker.Terminate(ctx); err != nil {
				log.Println("Error stopping worker:", err)
			}
		}()

		// Worker frames → WebSocket
		go func() {
			scanner := bufio.NewScanner(worker.Stdout())
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
			for scanner.Scan() {
				if err := conn.WriteMessage(websocket.TextMessage, scanner.Bytes()); err != nil {
					log.Println("WS write error:", err)
					return
				}
			}
		}()

		// WebSocket messages → worker frames
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Println("WS read error:", err)
				}
				return
			}
			if _, err := worker.Stdin().Write(append(msg, '\n')); err != nil {
				log.Println("Stdin write error:", err)
				return
			}
		}
	}
}
