package main

import (
	"log/slog"
	"net/http"
	"os"

	mem "learnquest/adapters/memory"
	"learnquest/api/httpapi"
	"learnquest/engine"
	"learnquest/gamify"
	"learnquest/leaderboard"
	"learnquest/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	store := mem.New()
	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()

	eval := gamify.New(
		gamify.WithStore(store),
		gamify.WithRealtime(hub),
		gamify.WithLeaderboard(board),
		gamify.WithDispatchMode(engine.DispatchAsync),
	)
	defer eval.Close()

	handler := httpapi.NewMux(eval, store, board, hub, httpapi.Options{
		AllowCORSOrigin: "*",
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", handler); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}
