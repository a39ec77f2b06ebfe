package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mosaicnetworks/chronicle/src/node"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// maxObjectSize bounds the body of POST /objects.
const maxObjectSize = 1 << 20

// Service exposes the state of a node over HTTP, and lets clients submit
// objects.
type Service struct {
	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	logger      *logrus.Entry
}

// NewService creates a Service. The metrics of gatherer are served on
// /metrics; if it is nil the endpoint is not registered.
func NewService(bindAddress string, n *node.Node, gatherer prometheus.Gatherer, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger.WithField("prefix", "service"),
	}

	service.registerHandlers(gatherer)

	return &service
}

func (s *Service) registerHandlers(gatherer prometheus.Gatherer) {
	s.logger.Debug("Registering chronicle API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/info", s.makeHandler(s.GetInfo))
	s.mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	s.mux.HandleFunc("/pending", s.makeHandler(s.GetPending))
	s.mux.HandleFunc("/connections/", s.makeHandler(s.GetConnections))
	s.mux.HandleFunc("/delivered/", s.makeHandler(s.GetDelivered))
	s.mux.HandleFunc("/objects", s.makeHandler(s.PostObject))
	if gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving chronicle API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}

// GetStats returns the rolling statistics of the node.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// GetInfo returns a summary of the node's state.
func (s *Service) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetInfo())
}

// GetPeers returns the active members.
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetPeers())
}

// GetPending returns the pipeline.
func (s *Service) GetPending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetPending())
}

// GetConnections returns the neighbors of the node at the level given in the
// path.
func (s *Service) GetConnections(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimPrefix(r.URL.Path, "/connections/")

	level, err := strconv.Atoi(param)
	if err != nil || level < 1 {
		s.logger.WithField("level", param).Debug("Bad level parameter")
		http.Error(w, "level must be a positive integer", http.StatusBadRequest)
		return
	}

	writeJSON(w, s.node.GetConnections(level))
}

// GetDelivered returns the archived object at the index given in the path.
func (s *Service) GetDelivered(w http.ResponseWriter, r *http.Request) {
	param := strings.TrimPrefix(r.URL.Path, "/delivered/")

	index, err := strconv.Atoi(param)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing index parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	delivered, err := s.node.GetDelivered(index)
	if err != nil {
		s.logger.WithError(err).Debugf("Retrieving delivered object %d", index)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, delivered)
}

// PostObject submits the request body. With a type query parameter, the body
// is wrapped in an object of that type first.
func (s *Service) PostObject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxObjectSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload := body
	if objectType := r.URL.Query().Get("type"); objectType != "" {
		payload, err = proxy.NewObject(objectType, body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if !s.node.Submit(payload) {
		http.Error(w, "object refused", http.StatusConflict)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
