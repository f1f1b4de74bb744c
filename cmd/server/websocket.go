// Package main is the entry point of the application
package main

import (
	"net/http"

	"go.uber.org/zap"
)

// handleWebSocket handles WebSocket connections
func (app *application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade HTTP connection to WebSocket
	ws, err := app.upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.Logger.Debug("Failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	app.Logger.Info("WebSocket connection established",
		zap.String("remote_addr", r.RemoteAddr))

	// Register the connection and start its read/write goroutines
	app.Hub.Serve(ws)
}
