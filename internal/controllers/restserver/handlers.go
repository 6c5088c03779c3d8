package restserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/chrissnell/tipstation/internal/constants"
	"github.com/chrissnell/tipstation/internal/sampler"
	"github.com/chrissnell/tipstation/internal/types"
	"github.com/chrissnell/tipstation/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data, nil); err != nil {
		h.controller.logger.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	if err := h.formatter.WriteError(w, req, status, msg); err != nil {
		h.controller.logger.Errorf("error encoding error response for %s: %v", req.URL.Path, err)
	}
}

// GetLatest handles GET / with the most recent snapshot
func (h *Handlers) GetLatest(w http.ResponseWriter, req *http.Request) {
	snap, err := h.controller.deps.Source.Latest(req.Context())
	if err != nil {
		var sensorErr *sampler.SensorError
		switch {
		case errors.Is(err, ErrNoReading):
			h.writeError(w, req, http.StatusNotFound, err.Error())
		case errors.As(err, &sensorErr):
			h.controller.logger.Warnf("on-demand sample failed: %v", err)
			h.writeError(w, req, http.StatusServiceUnavailable, err.Error())
		default:
			h.controller.logger.Errorf("could not get latest reading: %v", err)
			h.writeError(w, req, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.write(w, req, http.StatusOK, transformReading(snap, h.controller.location, false))
}

// GetHistory handles GET /history with the rolling buffer, oldest first
func (h *Handlers) GetHistory(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, transformReadings(h.controller.deps.State.History(), h.controller.location, false))
}

// GetHistorySummary handles GET /history/summary
func (h *Handlers) GetHistorySummary(w http.ResponseWriter, req *http.Request) {
	h.write(w, req, http.StatusOK, summarize(h.controller.deps.State.History(), h.controller.location))
}

// GetData handles GET /data with every record in the archive sink
func (h *Handlers) GetData(w http.ResponseWriter, req *http.Request) {
	archive := h.controller.deps.Archive
	if archive == nil {
		h.writeError(w, req, http.StatusNotFound, "no archive sink configured")
		return
	}

	records, err := archive.Sink.Query(req.Context(), archive.Table)
	if err != nil {
		h.controller.logger.Errorf("archive query failed: %v", err)
		h.writeError(w, req, http.StatusBadGateway, err.Error())
		return
	}
	h.write(w, req, http.StatusOK, transformReadings(records, h.controller.location, true))
}

// GetStatus handles GET /status
func (h *Handlers) GetStatus(w http.ResponseWriter, req *http.Request) {
	d := h.controller.deps
	tips := d.State.TipState()

	status := StationStatus{
		Station: h.controller.cfg.Station.Name,
		Mode:    h.controller.cfg.Station.Mode,
		Version: constants.Version,
		Uptime:  time.Since(startedAt).Round(time.Second).String(),
		Rain: TipStatus{
			Count:         tips.TipCount,
			Precipitation: types.Round2(float64(tips.TipCount) * h.controller.cfg.Rain.MmPerTip),
			Armed:         tips.Armed,
			Policy:        h.controller.cfg.Rain.Policy,
		},
		History: len(d.State.History()),
		Sensors: make(map[string]bool, len(d.Sensors)),
	}
	if !tips.LastTipAt.IsZero() {
		status.Rain.LastTipAt = tips.LastTipAt.In(h.controller.location).Format(constants.TimeLayout)
	}
	if d.Jobs != nil {
		status.Jobs = d.Jobs.Status()
	}
	for name, s := range d.Sensors {
		status.Sensors[name] = s.Ready()
	}
	if d.Health != nil {
		status.Health = d.Health.GetAllHealth()
	}
	h.write(w, req, http.StatusOK, status)
}
