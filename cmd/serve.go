package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kolscout/internal/model"
	"github.com/sells-group/kolscout/internal/resolver"
	"github.com/sells-group/kolscout/internal/scoring"
	"github.com/sells-group/kolscout/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resolution and scores API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine, err := newEngine(st)
		if err != nil {
			return err
		}

		mux := newServeMux(st, newResolver(st), engine, scoring.NewPublisher(st))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newServeMux(st store.Store, res *resolver.Resolver, engine *scoring.Engine, pub *scoring.Publisher) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /nominations", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			CampaignID string `json:"campaign_id"`
			QuestionID string `json:"question_id"`
			RawName    string `json:"raw_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if _, err := st.GetCampaign(r.Context(), req.CampaignID); err != nil {
			writeError(w, err)
			return
		}

		n := &model.Nomination{
			CampaignID: req.CampaignID,
			QuestionID: req.QuestionID,
			RawName:    req.RawName,
		}
		if err := st.CreateNomination(r.Context(), n); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	})

	mux.HandleFunc("GET /nominations/{id}/suggestions", func(w http.ResponseWriter, r *http.Request) {
		candidates, err := res.Suggest(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, candidates)
	})

	mux.HandleFunc("POST /nominations/{id}/match", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			HcpID      string `json:"hcp_id"`
			ResolvedBy string `json:"resolved_by"`
			NoAlias    bool   `json:"no_alias"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		err := res.Match(r.Context(), r.PathValue("id"), req.HcpID, req.ResolvedBy, !req.NoAlias)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "matched"})
	})

	mux.HandleFunc("POST /nominations/{id}/exclude", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason     string `json:"reason"`
			ResolvedBy string `json:"resolved_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		err := res.Exclude(r.Context(), r.PathValue("id"), req.Reason, req.ResolvedBy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "excluded"})
	})

	mux.HandleFunc("POST /nominations/{id}/create-hcp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NPI        string `json:"npi"`
			FirstName  string `json:"first_name"`
			LastName   string `json:"last_name"`
			Specialty  string `json:"specialty"`
			City       string `json:"city"`
			State      string `json:"state"`
			ResolvedBy string `json:"resolved_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		h := &model.HCP{
			NPI:       req.NPI,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Specialty: req.Specialty,
			City:      req.City,
			State:     req.State,
		}
		created, err := res.CreateHcp(r.Context(), r.PathValue("id"), h, req.ResolvedBy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	})

	mux.HandleFunc("POST /campaigns/{id}/automatch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResolvedBy string `json:"resolved_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.ResolvedBy == "" {
			req.ResolvedBy = "automatch"
		}

		report, err := res.AutoMatch(r.Context(), r.PathValue("id"), req.ResolvedBy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("GET /campaigns/{id}/weights", func(w http.ResponseWriter, r *http.Request) {
		weights, err := engine.Weights(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, weights)
	})

	mux.HandleFunc("PUT /campaigns/{id}/weights", func(w http.ResponseWriter, r *http.Request) {
		var weights model.Weights
		if err := json.NewDecoder(r.Body).Decode(&weights); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if _, err := st.GetCampaign(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		err := st.SaveScoreConfig(r.Context(), &model.CompositeScoreConfig{
			CampaignID: r.PathValue("id"),
			Weights:    weights,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, weights)
	})

	mux.HandleFunc("DELETE /campaigns/{id}/weights", func(w http.ResponseWriter, r *http.Request) {
		if err := st.DeleteScoreConfig(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.DefaultWeights())
	})

	mux.HandleFunc("POST /campaigns/{id}/calculate", func(w http.ResponseWriter, r *http.Request) {
		n, err := engine.ScoreCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"scored": n})
	})

	mux.HandleFunc("POST /campaigns/{id}/publish", func(w http.ResponseWriter, r *http.Request) {
		report, err := pub.PublishCampaign(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	// Dashboards see published rows only.
	mux.HandleFunc("GET /campaigns/{id}/scores", func(w http.ResponseWriter, r *http.Request) {
		scores, err := st.ListCampaignScores(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		published := make([]model.HcpCampaignScore, 0, len(scores))
		for _, sc := range scores {
			if sc.PublishedAt != nil {
				published = append(published, sc)
			}
		}
		writeJSON(w, http.StatusOK, published)
	})

	mux.HandleFunc("GET /hcps/{id}/disease-areas/{da}/score", func(w http.ResponseWriter, r *http.Request) {
		snap, err := st.GetCurrentSnapshot(r.Context(), r.PathValue("id"), r.PathValue("da"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("GET /hcps/{id}/disease-areas/{da}/history", func(w http.ResponseWriter, r *http.Request) {
		snaps, err := st.ListSnapshots(r.Context(), r.PathValue("id"), r.PathValue("da"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snaps)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case model.IsValidation(err):
		status = http.StatusBadRequest
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsInvalidState(err), model.IsConflict(err):
		status = http.StatusConflict
	default:
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
