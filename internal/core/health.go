package core

import (
	"net/http"
	"time"
)

// healthResponse is the payload returned by the health check endpoint.
type healthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Time        string `json:"time"`
}

// HandleHealth reports liveness and build metadata. It deliberately does
// not touch the database or counter store: a health probe must stay cheap
// and must not amplify load on a struggling dependency.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, healthResponse{
		Status:      "ok",
		Environment: s.Config.Environment,
		Version:     s.Config.Build.Version,
		Commit:      s.Config.Build.Commit,
		Time:        s.Now().UTC().Format(time.RFC3339),
	})
}
