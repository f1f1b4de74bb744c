// Package main is the entry point of the application
package main

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (app *application) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", app.handleHealth).Methods(http.MethodGet)
	r.Handle("/ws", app.authenticate(http.HandlerFunc(app.handleWebSocket))).Methods(http.MethodGet)

	return r
}
