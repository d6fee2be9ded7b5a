package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"shook/internal/deployment"
	"shook/internal/event"
	"shook/internal/history"
	"shook/internal/hook"
)

// RecentDeliveriesLimit is the number of rows returned by /status.
const RecentDeliveriesLimit = 10

// HandleWebhook authenticates and decodes one delivery, drops it when its
// event is not in update_events and otherwise runs a deploy cycle and
// reports the cycle's outcome. The response body is empty.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	d, err := s.Reader.Read(r)
	if err != nil {
		status := statusForError(err)
		logger := s.Logger.With(
			"delivery", r.Header.Get(hook.HeaderDelivery),
			"event", r.Header.Get(hook.HeaderEvent),
			"status", status,
			"error", err)
		if status >= http.StatusInternalServerError {
			logger.Error("Webhook rejected")
		} else {
			logger.Warn("Webhook rejected")
		}
		s.record(r.Context(), &history.DeliveryRecord{
			GUID:         r.Header.Get(hook.HeaderDelivery),
			Event:        r.Header.Get(hook.HeaderEvent),
			Outcome:      history.OutcomeRejected,
			StatusCode:   status,
			StartedAt:    start,
			ErrorMessage: stringPtr(err.Error()),
		})
		w.WriteHeader(status)
		return
	}

	kind := d.Event.Kind()
	logger := s.Logger.With("delivery", d.GUID.String(), "event", kind)

	if !event.Matches(d.Event, s.Events) {
		logger.Info("Event not in update_events, skipping")
		s.record(r.Context(), &history.DeliveryRecord{
			GUID:       d.GUID.String(),
			Event:      kind.String(),
			Outcome:    history.OutcomeSkipped,
			StatusCode: http.StatusOK,
			StartedAt:  start,
		})
		w.WriteHeader(http.StatusOK)
		return
	}

	if push, ok := d.Event.(*event.Push); ok {
		logger = logger.With("ref", push.Ref, "after", push.After)
	}

	results, err := s.Dispatcher.Submit(s.Target)
	if err != nil {
		status := statusForError(err)
		logger.Warn("Deploy not queued", "status", status, "error", err)
		s.record(r.Context(), &history.DeliveryRecord{
			GUID:         d.GUID.String(),
			Event:        kind.String(),
			Outcome:      history.OutcomeRejected,
			StatusCode:   status,
			StartedAt:    start,
			ErrorMessage: stringPtr(err.Error()),
		})
		w.WriteHeader(status)
		return
	}

	logger.Info("Deploy queued")

	select {
	case res := <-results:
		status := s.finishDeploy(r.Context(), d, start, res)
		w.WriteHeader(status)
	case <-r.Context().Done():
		// The cycle keeps running under the dispatcher's context; record it
		// when it finishes.
		logger.Warn("Request ended before deploy finished", "error", r.Context().Err())
		go func() {
			s.finishDeploy(context.Background(), d, start, <-results)
		}()
		w.WriteHeader(http.StatusAccepted)
	}
}

// finishDeploy logs and records a finished cycle and returns the status
// code the delivery should get.
func (s *Server) finishDeploy(ctx context.Context, d *hook.Delivery, start time.Time, res deployment.Result) int {
	kind := d.Event.Kind()
	logger := s.Logger.With("delivery", d.GUID.String(), "event", kind)

	rec := &history.DeliveryRecord{
		GUID:      d.GUID.String(),
		Event:     kind.String(),
		StartedAt: start,
	}
	if res.Report != nil {
		duration := res.Report.Duration.Seconds()
		rec.DurationSeconds = &duration
	}

	status := http.StatusOK
	if res.Err != nil {
		status = statusForError(res.Err)
		rec.Outcome = history.OutcomeFailed
		rec.ErrorMessage = stringPtr(res.Err.Error())

		var stepErr *deployment.StepError
		if errors.As(res.Err, &stepErr) {
			rec.ExitCode = intPtr(stepErr.ExitCode)
			logger.Error("Deploy failed",
				"step", stepErr.Step,
				"exit_code", stepErr.ExitCode,
				"signal", stepErr.Signal,
				"timed_out", stepErr.TimedOut,
				"error", res.Err)
		} else {
			logger.Error("Deploy failed", "error", res.Err)
		}
	} else {
		rec.Outcome = history.OutcomeDeployed
		rec.ExitCode = intPtr(res.Report.ExitCode())
		logger.Info("Deploy finished", "duration_ms", res.Report.Duration.Milliseconds())
	}
	rec.StatusCode = status

	s.record(ctx, rec)
	return status
}

// record writes rec to history, if enabled. Failures are logged only.
func (s *Server) record(ctx context.Context, rec *history.DeliveryRecord) {
	if s.History == nil {
		return
	}
	rec.ConfigFingerprint = s.Fingerprint
	if _, err := s.History.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.Logger.Error("Failed to record delivery", "error", err, "delivery", rec.GUID)
	}
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":        "ok",
		"system_name":   s.Target.SystemName,
		"repo_path":     s.Target.RepoPath,
		"update_events": s.Events.Kinds(),
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus reports recent deliveries from history.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		msg := "History not available"
		if s.TestMode {
			msg = "History not available in test mode"
		}
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": msg})
		return
	}

	status, err := s.History.Status(r.Context(), RecentDeliveriesLimit)
	if err != nil {
		s.Logger.Error("Failed to read delivery history", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch delivery status"})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"system_name":        s.Target.SystemName,
		"config_fingerprint": s.Fingerprint,
		"latest_delivery":    status.Latest,
		"recent_deliveries":  status.Recent,
		"counts":             status.Counts,
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Helper functions
func stringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(n int) *int {
	return &n
}
