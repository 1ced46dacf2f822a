package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Fake generation API for local testing. Issues short-lived credentials from
// /v1/credentials and rejects generation calls that present an unknown or
// expired one, so the broker's renewal path can be exercised end to end.

var (
	mu          sync.Mutex
	credentials = map[string]time.Time{} // value -> expiry
)

const credentialTTL = 2 * time.Minute

func main() {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status": "ok"}`)
	})

	http.HandleFunc("/v1/credentials", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		buf := make([]byte, 24)
		rand.Read(buf)
		value := "cred_" + hex.EncodeToString(buf)

		now := time.Now()
		expiry := now.Add(credentialTTL)

		mu.Lock()
		credentials[value] = expiry
		mu.Unlock()

		log.Printf("Issued credential %s... (tier: %s)", value[:12], r.Header.Get("X-Tier"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"credential": value,
			"issued_at":  now,
			"expires_at": expiry,
		})
	})

	http.HandleFunc("/v1/generations", func(w http.ResponseWriter, r *http.Request) {
		value := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		mu.Lock()
		expiry, known := credentials[value]
		mu.Unlock()

		if !known || time.Now().After(expiry) {
			log.Printf("Rejected generation from %s: bad credential", r.Header.Get("X-Client-ID"))
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error": "invalid credential"}`)
			return
		}

		log.Printf("Generation for %s (tier: %s)", r.Header.Get("X-Client-ID"), r.Header.Get("X-Tier"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"output": "generated content", "client": "%s"}`, r.Header.Get("X-Client-ID"))
	})

	log.Println("Fake upstream starting on :3001")
	if err := http.ListenAndServe(":3001", nil); err != nil {
		log.Fatal(err)
	}
}
