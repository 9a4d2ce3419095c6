package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"jamsync/internal/client"
	"jamsync/internal/protocol"
)

func main() {
	addr := flag.String("addr", "ws://localhost:5000/ws", "jam session server websocket address")
	username := flag.String("user", "", "display name")
	room := flag.String("room", "", "room code to join (omit to create a new room)")
	seekDebounceMs := flag.Int("seek-debounce-ms", 500, "coalescing window for outgoing seek events")
	flag.Parse()

	if *username == "" {
		slog.Error("missing -user")
		os.Exit(1)
	}

	sess, err := client.Dial(*addr, *seekDebounceMs)
	if err != nil {
		slog.Error("connect failed", "err", err)
		os.Exit(1)
	}
	defer sess.Close()

	player := client.NewPlayer(44100, 1)
	sess.AttachPlayer(player)
	defer player.Close()

	if *room == "" {
		if err := sess.CreateRoom(*username, 0); err != nil {
			slog.Error("create room failed", "err", err)
			os.Exit(1)
		}
	} else if err := sess.JoinRoom(*room, *username, 0); err != nil {
		slog.Error("join room failed", "err", err)
		os.Exit(1)
	}

	go printEvents(sess)
	runREPL(sess)
}

func printEvents(sess *client.Session) {
	for msg := range sess.Events() {
		sess.HandleEvent(msg)
		switch msg.Type {
		case protocol.TypeRoomCreated:
			fmt.Printf("room created: %s\n", msg.RoomCode)
		case protocol.TypeRoomJoined:
			fmt.Printf("joined room: %s\n", msg.RoomCode)
		case protocol.TypeURLProcessed:
			if msg.Status == protocol.StatusError {
				fmt.Printf("acquisition failed: %s\n", msg.Error)
			} else if msg.Song != nil {
				fmt.Printf("added: %s - %s\n", msg.Song.Artist, msg.Song.Title)
			}
		case protocol.TypeQueueUpdated:
			fmt.Printf("queue now has %d tracks\n", len(msg.Queue))
		case protocol.TypeSongStarted:
			if msg.Song != nil {
				fmt.Printf("now playing: %s - %s\n", msg.Song.Artist, msg.Song.Title)
			}
		case protocol.TypeError:
			fmt.Printf("server error: %s\n", msg.Error)
		}
	}
}

func runREPL(sess *client.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: add <url> | play <index> | toggle | shuffle | remove <index> | quit")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		switch parts[0] {
		case "add":
			if len(parts) == 2 {
				_ = sess.AddURLToQueue(parts[1])
			}
		case "play":
			if len(parts) == 2 {
				if idx, err := strconv.Atoi(parts[1]); err == nil {
					_ = sess.PlaySong(idx)
				}
			}
		case "toggle":
			_ = sess.TogglePlay()
		case "shuffle":
			_ = sess.ShuffleQueue()
		case "remove":
			if len(parts) == 2 {
				if idx, err := strconv.Atoi(parts[1]); err == nil {
					_ = sess.RemoveFromQueue(idx)
				}
			}
		case "quit":
			return
		default:
			fmt.Println("unknown command")
		}
	}
}
