// Package main is the entry point of the application
package main

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type healthResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	Connections  int    `json:"connections"`
	Participants int    `json:"participants"`
	Waiting      int    `json:"waiting"`
	Sessions     int    `json:"sessions"`
}

// handleHealth handles the GET /health endpoint
func (app *application) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := app.Registry.Stats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(healthResponse{
		Status:       "ok",
		Uptime:       time.Since(app.StartTime).Round(time.Second).String(),
		Connections:  app.Hub.Connections(),
		Participants: stats.Participants,
		Waiting:      stats.Waiting,
		Sessions:     stats.Sessions,
	})
	if err != nil {
		app.Logger.Debug("write health response", zap.Error(err))
	}
}
