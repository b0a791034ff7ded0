//go:build js && wasm

// Command pagebeacon-wasm is the in-page beacon. Build with
// GOOS=js GOARCH=wasm and load it with wasm_exec.js.
package main

import (
	"log/slog"

	"github.com/vincentbai/pagebeacon/internal/beacon"
	"github.com/vincentbai/pagebeacon/internal/browser"
	"github.com/vincentbai/pagebeacon/internal/models"
)

func main() {
	page := browser.New()
	logger := slog.New(slog.NewTextHandler(browser.Console{}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	beacon.Start(page, page.Origin()+models.TrackPath, beacon.WithLogger(logger))

	// Handlers run on callbacks from the page; keep the module alive.
	select {}
}
