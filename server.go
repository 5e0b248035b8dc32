package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"
)

const (
	resultsLimit   = 20
	resultsTimeout = 5 * time.Second
	qrSize         = 256
)

var uuidPathRe = regexp.MustCompile(`^/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// joinURL is the link a QR code points at: the SPA with the room preselected
func joinURL(publicURL string, r *http.Request, roomID string) string {
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		base = "http://" + r.Host
	}
	return base + "/?room=" + url.QueryEscape(roomID)
}

// SetupRoutes configures HTTP routes. An empty clientDir disables static files.
func SetupRoutes(hub *Hub, clientDir string) *http.ServeMux {
	mux := http.NewServeMux()

	if clientDir != "" {
		// Serve static files with no-cache so browsers always revalidate
		fs := http.FileServer(http.Dir(clientDir))
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			// SPA: serve index.html for root and room paths
			if r.URL.Path == "/" || uuidPathRe.MatchString(r.URL.Path) {
				http.ServeFile(w, r, filepath.Join(clientDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]int{
			"rooms":       hub.rooms.Count(),
			"clients":     hub.ClientCount(),
			"connections": hub.TotalConns(),
		})
	})

	mux.HandleFunc("GET /rooms", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.rooms.ListRooms())
	})

	mux.HandleFunc("GET /rooms/{id}/qr", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if hub.rooms.GetRoom(id) == nil {
			http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}
		png, err := qrcode.Encode(joinURL(hub.publicURL, r, id), qrcode.Medium, qrSize)
		if err != nil {
			log.Printf("room %s: qr: %v", id, err)
			http.Error(w, "qr encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	mux.HandleFunc("GET /rooms/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if hub.rooms.GetRoom(id) == nil {
			http.Error(w, ErrRoomNotFound.Error(), http.StatusNotFound)
			return
		}
		if hub.journal == nil {
			writeJSON(w, []ResultRow{})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), resultsTimeout)
		defer cancel()
		results, err := hub.journal.Results(ctx, id, resultsLimit)
		if err != nil {
			log.Printf("room %s: results: %v", id, err)
			http.Error(w, "results unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, results)
	})

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	return mux
}
