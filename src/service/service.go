package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/chainboot/src/bootstrap"
	"github.com/mosaicnetworks/chainboot/src/journal"
	"github.com/sirupsen/logrus"
)

// DefaultHistoryLength is the number of runs /history returns when the
// request does not say.
const DefaultHistoryLength = 20

// History lists past runs, most recent first.
type History interface {
	List(n int) ([]*journal.Record, error)
}

// Service exposes the state of an orchestrator over HTTP.
type Service struct {
	sync.Mutex

	bindAddress  string
	orchestrator *bootstrap.Orchestrator
	history      History
	mux          *http.ServeMux
	logger       *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, o *bootstrap.Orchestrator, history History, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress:  bindAddress,
		orchestrator: o,
		history:      history,
		mux:          http.NewServeMux(),
		logger:       logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering bootstrap API handlers")
	s.mux.HandleFunc("/status", s.makeHandler(s.GetStatus))
	s.mux.HandleFunc("/history", s.makeHandler(s.GetHistory))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handler serving the API.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving bootstrap API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStatus ...
func (s *Service) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.orchestrator.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetHistory ...
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "journal is disabled", http.StatusNotFound)
		return
	}

	n := DefaultHistoryLength

	if param := r.URL.Query().Get("n"); param != "" {
		v, err := strconv.Atoi(param)
		if err != nil {
			s.logger.WithError(err).Errorf("Parsing n parameter %s", param)

			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
		n = v
	}

	records, err := s.history.List(n)
	if err != nil {
		s.logger.WithError(err).Error("Retrieving history")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(records)
}
