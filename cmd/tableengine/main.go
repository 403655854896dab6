package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"tableengine/internal/coordinator"
	"tableengine/internal/notifier/wsnotifier"
	"tableengine/internal/scanner"
	"tableengine/internal/store"
	"tableengine/internal/store/postgres"
	"tableengine/internal/store/sqlite"
)

// storeFromEnv selects the store backend by STORE_DRIVER, defaulting to
// sqlite for local development.
func storeFromEnv() (store.Store, string, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	switch driver {
	case "postgres":
		st, err := postgres.NewStoreFromEnv()
		return st, "postgres", err
	case "sqlite", "":
		st, err := sqlite.NewStoreFromEnv()
		return st, "sqlite", err
	default:
		log.Printf("[Server] Unknown STORE_DRIVER %q, falling back to sqlite", driver)
		st, err := sqlite.NewStoreFromEnv()
		return st, "sqlite", err
	}
}

func main() {
	st, storeMode, err := storeFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init store: %v", err)
	}
	defer st.Close()

	hub := wsnotifier.NewHub()
	coord := coordinator.New(st, hub)
	defer coord.Close()

	ingester := scanner.New(st, coord.DealFromScan)

	mux := http.NewServeMux()
	// Intake for the hardware scan stream: one message per request. The
	// request is answered once the ingester has accepted the message; actual
	// dealing happens on the table's worker (at-least-once, FIFO per table).
	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}
		msg := scanner.Message{
			Serial:  strings.TrimSpace(r.FormValue("serial")),
			Barcode: strings.TrimSpace(r.FormValue("barcode")),
			Ts:      time.Now().UTC(),
		}
		ingester.Enqueue(msg, func() {})
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		tableID := strings.TrimSpace(r.URL.Query().Get("tableId"))
		if tableID == "" {
			http.Error(w, "missing tableId", http.StatusBadRequest)
			return
		}
		hub.HandleWebSocket(tableID, w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// The scan-queue consumer is an external collaborator: whatever transport
	// delivers {serial, barcode, ts} messages calls ingester.Enqueue with its
	// own ack. A deployment wires it here from SCAN_QUEUE_ENDPOINT.
	if ep := strings.TrimSpace(os.Getenv("SCAN_QUEUE_ENDPOINT")); ep != "" {
		log.Printf("[Server] Scan queue endpoint: %s", ep)
	}

	addr := strings.TrimSpace(os.Getenv("SERVER_ADDR"))
	if addr == "" {
		addr = ":18080"
	}
	log.Printf("[Server] Store mode: %s", storeMode)
	log.Printf("[Server] Listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("[Server] HTTP server error: %v", err)
	}
}
