package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var adminName string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream live events from the websocket channel",
		Long: `watch connects to the server's websocket endpoint and prints every
event as it arrives. With --admin it also marks you online on the
admin roster for as long as the stream runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL := websocketURL(client.BaseURL())

			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", wsURL, err)
			}
			defer func() { _ = conn.Close() }()

			if adminName != "" {
				err := conn.WriteJSON(map[string]any{
					"event": "adminOnline",
					"data":  map[string]any{"username": adminName, "online": true},
				})
				if err != nil {
					return err
				}
			}

			// Going offline on interrupt keeps the roster honest
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				if adminName != "" {
					_ = conn.WriteJSON(map[string]any{
						"event": "adminOnline",
						"data":  map[string]any{"username": adminName, "online": false},
					})
				}
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
			}()

			out := NewOutput(cfg.Output)
			seen := 0
			for count <= 0 || seen < count {
				var envelope struct {
					Event string          `json:"event"`
					Data  json.RawMessage `json:"data"`
				}
				if err := conn.ReadJSON(&envelope); err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						return nil
					}
					return err
				}
				seen++

				if cfg.Output == "json" {
					out.Print(envelope)
				} else {
					fmt.Printf("%-20s %s\n", envelope.Event, string(envelope.Data))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&adminName, "admin", "", "Go online on the admin roster as this user")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after this many events (0 streams forever)")

	return cmd
}

// websocketURL converts the configured HTTP base URL to its ws endpoint
func websocketURL(baseURL string) string {
	wsURL := baseURL
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	return wsURL + "/ws"
}
