package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/iotsim/internal/device"
)

// maxSimulateIterations bounds POST /simulate.
const maxSimulateIterations = 10000

type brightnessRequest struct {
	Brightness *int `json:"brightness" validate:"required,min=0,max=100"`
}

type temperatureRequest struct {
	Temperature *float64 `json:"temperature" validate:"required,gte=10,lte=30"`
}

type securityStatusRequest struct {
	SecurityStatus string `json:"security_status" validate:"required"`
}

type simulateRequest struct {
	Iterations int `json:"iterations" validate:"min=1,max=10000"`
}

// handleListDevices returns every device in discovery order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snaps := s.system.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{"devices": snaps, "count": len(snaps)})
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	snap, ok := s.snapshot(id)
	if !ok {
		writeNotFound(w, fmt.Sprintf("device %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleReport returns the state report.
//
// Query parameters:
//   - format: "json" (default) or "text" for one "<id>: <status>" line per device
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		report := s.system.Report()
		writeJSON(w, http.StatusOK, map[string]any{"devices": report, "count": len(report)})
	case "text":
		var b strings.Builder
		for _, snap := range s.system.Snapshots() {
			fmt.Fprintf(&b, "%s: %s\n", snap.ID, snap.Status)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // Best-effort write to response
		w.Write([]byte(b.String()))
	default:
		writeBadRequest(w, fmt.Sprintf("unknown format %q", format))
	}
}

func (s *Server) handleTurnOn(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.system.TurnOn)
}

func (s *Server) handleTurnOff(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.system.TurnOff)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.system.Toggle)
}

// handleDetectMotion marks a camera as having seen motion. With the motion
// rule enabled every light is switched on too.
func (s *Server) handleDetectMotion(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.system.DetectMotion)
}

func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	var req brightnessRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (device.Snapshot, error) {
		return s.system.SetBrightness(ctx, id, *req.Brightness)
	})
}

func (s *Server) handleSetTemperature(w http.ResponseWriter, r *http.Request) {
	var req temperatureRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (device.Snapshot, error) {
		return s.system.SetTemperature(ctx, id, *req.Temperature)
	})
}

func (s *Server) handleSetSecurityStatus(w http.ResponseWriter, r *http.Request) {
	var req securityStatusRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	status, err := device.ParseSecurityStatus(req.SecurityStatus)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (device.Snapshot, error) {
		return s.system.SetSecurityStatus(ctx, id, status)
	})
}

// handleRandomizeDevice applies one randomization step to a device and
// returns the delta together with the resulting state.
func (s *Server) handleRandomizeDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	delta, err := s.system.RandomizeDevice(r.Context(), id)
	if err != nil {
		s.writeSystemError(w, r, err)
		return
	}
	snap, _ := s.snapshot(id)
	writeJSON(w, http.StatusOK, map[string]any{"delta": delta, "device": snap})
}

// handleSimulate runs n passes over every device.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if err := s.system.Simulate(r.Context(), req.Iterations); err != nil {
		s.writeSystemError(w, r, err)
		return
	}
	snaps := s.system.Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{
		"iterations": req.Iterations,
		"passes":     s.system.Passes(),
		"devices":    snaps,
	})
}

// mutate runs fn for the {id} path parameter and writes the resulting state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (device.Snapshot, error)) {
	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	snap, err := fn(r.Context(), id)
	if err != nil {
		s.writeSystemError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeSystemError(w http.ResponseWriter, r *http.Request, err error) {
	if writeDeviceError(w, err) {
		return
	}
	s.logger.Error("device operation failed",
		"error", err,
		"path", r.URL.Path,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)
	writeInternalError(w, "device operation failed")
}

// snapshot returns the current state of one device.
func (s *Server) snapshot(id string) (device.Snapshot, bool) {
	snap, ok := s.system.Report()[id]
	return snap, ok
}

// decodeAndValidate decodes a JSON body into dst and runs its validate tags.
// It writes the error response itself and reports whether to continue.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeValidationError(w, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders validator errors as "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, strings.ToLower(fe.Field())+": "+rule)
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// deviceID returns the unescaped {id} path parameter. chi matches on the
// escaped path when it differs from the decoded one, so an id containing
// "/" arrives as "%2F".
func deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid device id: %v", err))
		return "", false
	}
	return id, true
}
