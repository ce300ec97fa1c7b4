package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/hochfrequenz/regression-orchestrator/internal/domain"
	"github.com/hochfrequenz/regression-orchestrator/internal/runstore"
)

const (
	// liveLimit is the number of recent runs pushed to live clients
	liveLimit = 50
	writeWait = 10 * time.Second
)

// LiveEvent is pushed to live clients whenever the recent runs change
type LiveEvent struct {
	Type string        `json:"type"`
	Runs []RunResponse `json:"runs"`
}

// liveHandler upgrades to a websocket and pushes the recent runs each time
// the history changes
func (s *Server) liveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// The client sends nothing; reading only detects the close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		var last string
		for {
			runs, err := s.store.ListRuns(runstore.ListOptions{Limit: liveLimit})
			if err == nil {
				if key := snapshotKey(runs); key != last {
					last = key
					event := LiveEvent{Type: "runs", Runs: make([]RunResponse, len(runs))}
					for i, run := range runs {
						event.Runs[i] = runToResponse(run)
					}
					conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteJSON(event); err != nil {
						return
					}
				}
			}

			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}

// snapshotKey identifies a list of runs by id and status
func snapshotKey(runs []*domain.Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.ID)
		b.WriteByte(':')
		b.WriteString(string(r.Status))
		b.WriteByte(';')
	}
	return b.String()
}
