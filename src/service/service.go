package service

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/mosaicnetworks/synod/src/node"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/sirupsen/logrus"
)

// maxEventSize bounds the body of a submission. An event travels in a single
// datagram.
const maxEventSize = 32 * 1024

// Service exposes the state of a node over HTTP, and lets operators submit
// events and inject faults.
type Service struct {
	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService creates a Service and registers its handlers.
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := newService(bindAddress, n, logger)

	service.registerHandlers(http.DefaultServeMux)

	return service
}

func newService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	return &Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger.WithField("component", "service"),
	}
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when Synod is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers(mux *http.ServeMux) {
	s.logger.Debug("Registering Synod API handlers")
	mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	mux.HandleFunc("/entry/", s.makeHandler(s.GetEntry))
	mux.HandleFunc("/log", s.makeHandler(s.GetLog))
	mux.HandleFunc("/holes", s.makeHandler(s.GetHoles))
	mux.HandleFunc("/peers", s.makeHandler(s.GetPeers))
	mux.HandleFunc("/submit", s.makeHandler(s.Submit))
	mux.HandleFunc("/drop/", s.makeHandler(s.DropMessages))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when Synod is used in-memory and another server has already been
// started with the DefaultServerMux and the same address:port combination.
// Indeed, Synod API handlers have already been registered when the service was
// instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Synod API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// GetEntry returns the entry committed at /entry/{slot}
func (s *Service) GetEntry(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/entry/"):]

	slot, err := strconv.Atoi(param)
	if err != nil || slot < 0 {
		s.logger.WithField("slot", param).Debug("Parsing slot parameter")

		http.Error(w, "invalid slot: "+param, http.StatusBadRequest)

		return
	}

	event, ok := s.node.GetEntry(slot)
	if !ok {
		http.Error(w, "slot not filled", http.StatusNotFound)

		return
	}

	writeJSON(w, paxos.LogEntry{Slot: slot, Event: event})
}

// GetLog returns every committed entry, in slot order.
func (s *Service) GetLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetEntries())
}

// GetHoles returns the empty slots below the next available slot.
func (s *Service) GetHoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetHoles())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetPeers())
}

// SubmitResponse is returned by a successful submission.
type SubmitResponse struct {
	Slot int `json:"slot"`
}

// Submit commits the request body as an event. It blocks until the event is
// committed, the node shuts down, or the client goes away; in the last case
// the node keeps on trying. Submissions run on the node's bounded pool of
// workers, and are refused with 503 when it is full.
func (s *Service) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	event, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxEventSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	if len(event) == 0 {
		http.Error(w, node.ErrEmptyEvent.Error(), http.StatusBadRequest)
		return
	}

	resCh, err := s.node.SubmitAsync(event)
	if err != nil {
		s.logger.WithError(err).Debug("Submit refused")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	select {
	case res := <-resCh:
		if res.Err != nil {
			s.logger.WithError(res.Err).Debug("Submit")
			http.Error(w, res.Err.Error(), http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, SubmitResponse{Slot: res.Slot})
	case <-r.Context().Done():
		s.logger.Debug("Client left before commit")
	}
}

// DropMessages handles /drop/{role}/{count}
func (s *Service) DropMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	params := strings.Split(r.URL.Path[len("/drop/"):], "/")
	if len(params) != 2 {
		http.Error(w, "expected /drop/{role}/{count}", http.StatusBadRequest)
		return
	}

	count, err := strconv.Atoi(params[1])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.node.DropMessages(params[0], count); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(v)
}
