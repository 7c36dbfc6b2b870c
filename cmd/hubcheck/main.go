package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/park285/cheese-chess-hub/internal/hubclient"
	"github.com/park285/cheese-chess-hub/pkg/chessdto"
)

func main() {
	baseURL := flag.String("base", envDefault("HUB_BASE_URL", "http://localhost:8080"), "server base URL")
	token := flag.String("token", os.Getenv("HUB_TOKEN"), "auth token")
	team := flag.String("team", "WHITE", "seat to claim (WHITE, BLACK or empty to observe)")
	gameID := flag.Int("game", 0, "existing game id; 0 creates a new game")
	watch := flag.Duration("watch", 10*time.Second, "how long to print session traffic")
	flag.Parse()

	if *token == "" {
		log.Fatal("HUB_TOKEN or -token is required")
	}

	client := hubclient.NewClient(*baseURL, hubclient.WithToken(*token), hubclient.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := *gameID
	if id == 0 {
		var err error
		id, err = client.CreateGame(ctx, "hubcheck-"+uuid.NewString()[:8])
		if err != nil {
			log.Fatalf("create game: %v", err)
		}
		log.Printf("created game %d", id)
	}
	if *team != "" {
		if err := client.JoinGame(ctx, id, strings.ToUpper(*team)); err != nil {
			log.Printf("join %s: %v", *team, err)
		}
	}
	games, err := client.ListGames(ctx)
	if err != nil {
		log.Fatalf("list games: %v", err)
	}
	for _, g := range games {
		fmt.Printf("game %d %q state=%s white=%s black=%s\n", g.GameID, g.GameName, g.State, g.WhiteUsername, g.BlackUsername)
	}

	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(*baseURL, "/"), "http") + "/ws"
	sock, err := hubclient.Dial(ctx, wsURL, *token)
	if err != nil {
		log.Fatalf("ws dial: %v", err)
	}
	sock.OnMessage(func(msg chessdto.ServerMessage) {
		switch msg.ServerMessageType {
		case chessdto.MessageLoadGame:
			fmt.Printf("LOAD_GAME %s\n", msg.Game)
		case chessdto.MessageNotification:
			fmt.Printf("NOTIFICATION %q\n", msg.Message)
		default:
			fmt.Printf("ERROR %q\n", msg.ErrorMessage)
		}
	})
	if err := sock.Connect(ctx, id, strings.ToUpper(*team)); err != nil {
		log.Fatalf("connect: %v", err)
	}

	// Observe for a short window
	t := time.NewTimer(*watch)
	select {
	case <-t.C:
	case <-sock.Done():
		log.Printf("socket closed: %v", sock.Err())
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer closeCancel()
	_ = sock.Close(closeCtx)
}

func envDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
