// Command oauth-init authorizes pisoheroes to send mail through a Gmail
// account and stores the resulting token for EMAIL_BACKEND=gmail.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"pisoheroes/internal/log"
)

func main() {
	_ = godotenv.Load()
	logger := log.New(log.DefaultConfig())

	clientFile := os.Getenv("GMAIL_OAUTH_CLIENT_FILE")
	if clientFile == "" {
		logger.Error("Set GMAIL_OAUTH_CLIENT_FILE to the OAuth client JSON downloaded from Google Cloud")
		os.Exit(1)
	}
	b, err := os.ReadFile(clientFile)
	if err != nil {
		logger.Error("Failed to read client file", "error", err, "path", clientFile)
		os.Exit(1)
	}

	cfg, err := google.ConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		logger.Error("Invalid OAuth client", "error", err)
		os.Exit(1)
	}

	// The redirect URI must be listed on the OAuth client.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	state := fmt.Sprintf("pisoheroes-%d", time.Now().UnixNano())
	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "OAuth error: "+errStr, http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "PisoHeroes is authorized. You may close this window.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() { _ = srv.ListenAndServe() }()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize Gmail sending:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, os.Interrupt)

	var code string
	select {
	case code = <-codeCh:
	case <-time.After(5 * time.Minute):
		logger.Error("Authorization timed out")
		os.Exit(1)
	case <-interrupted:
		logger.Error("Interrupted")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", "error", err)
		os.Exit(1)
	}

	outFile := os.Getenv("GMAIL_OAUTH_TOKEN_FILE")
	if outFile == "" {
		outFile = "token.json"
	}
	f, err := os.OpenFile(outFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		logger.Error("Failed to open token file", "error", err, "path", outFile)
		os.Exit(1)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		logger.Error("Failed to write token", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Saved token to %s\n", outFile)
}
