// Package latticetest provides an in-memory Lattice core for tests.
//
// The fake speaks the same wire contract as a real core: PSK-authenticated
// requests, the staged batch protocol with cumulative counts and the BatchId
// response header, ndjson list responses, and the certificate bootstrap path
// for TLS servers. It holds all state in memory and is not safe to share
// between test binaries, only between goroutines of one test.
package latticetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/latticegraph/lattice-go/pkg/auth"
	"github.com/latticegraph/lattice-go/pkg/lattice"
	"github.com/latticegraph/lattice-go/pkg/trust"
)

type graphState struct {
	nodes   map[string]lattice.JSONObject
	edges   int
	batches map[string]*batchState
}

type batchState struct {
	id      string
	created time.Time
	totals  lattice.GraphUpdate
	nodes   map[string]lattice.JSONObject
	edges   int
}

// Server is an in-memory Lattice core behind an httptest listener.
type Server struct {
	// PSK, when non-empty, makes the server reject unsigned requests.
	PSK string

	// URL of the listener, usable as lattice.Config.BaseURL.
	URL string

	httpServer *httptest.Server
	ca         *testCA

	mu          sync.Mutex
	graphs      map[string]*graphState
	configs     map[string]lattice.JSONObject
	validations map[string]lattice.ConfigValidation
	subscribers map[string]*lattice.Subscriber
	model       lattice.Model
}

// Option configures a Server.
type Option func(*Server)

// WithPSK makes the server require PSK-signed requests, and makes the
// certificate bootstrap response carry a signed fingerprint claim.
func WithPSK(psk string) Option {
	return func(s *Server) { s.PSK = psk }
}

// WithModel seeds the core's data model.
func WithModel(m lattice.Model) Option {
	return func(s *Server) { s.model = m }
}

func newServer(opts ...Option) *Server {
	s := &Server{
		graphs:      map[string]*graphState{},
		configs:     map[string]lattice.JSONObject{},
		validations: map[string]lattice.ConfigValidation{},
		subscribers: map[string]*lattice.Subscriber{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer starts a fake core on plain HTTP.
func NewServer(opts ...Option) *Server {
	s := newServer(opts...)
	s.httpServer = httptest.NewServer(s.routes())
	s.URL = s.httpServer.URL
	return s
}

// NewTLSServer starts a fake core on HTTPS with a freshly generated
// self-issued CA, serving that CA from the certificate bootstrap path the way
// a real core does.
func NewTLSServer(opts ...Option) *Server {
	s := newServer(opts...)

	ca, err := newTestCA()
	if err != nil {
		panic(fmt.Sprintf("latticetest: generating CA: %v", err))
	}
	s.ca = ca

	s.httpServer = httptest.NewUnstartedServer(s.routes())
	s.httpServer.TLS = ca.serverTLSConfig()
	s.httpServer.StartTLS()
	s.URL = s.httpServer.URL
	return s
}

// Close shuts the listener down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// CAFingerprint returns the fingerprint of the server's CA certificate, or ""
// for plain HTTP servers.
func (s *Server) CAFingerprint() string {
	if s.ca == nil {
		return ""
	}
	return trust.Fingerprint(s.ca.cert)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get(trust.CertificatePath, s.handleCACert)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/model", s.handleGetModel)
		r.Patch("/model", s.handleUpdateModel)

		r.Get("/graph", s.handleListGraphs)
		r.Route("/graph/{graph}", func(r chi.Router) {
			r.Get("/", s.handleGetGraph)
			r.Post("/", s.handleCreateGraph)
			r.Delete("/", s.handleDeleteGraph)
			r.Post("/merge", s.handleMerge)

			r.Post("/batch/merge", s.handleBatchMerge)
			r.Get("/batch", s.handleListBatches)
			r.Post("/batch/{batchID}", s.handleCommitBatch)
			r.Delete("/batch/{batchID}", s.handleAbortBatch)

			r.Post("/node/{nodeID}/under/{parentID}", s.handleCreateNode)
			r.Get("/node/{nodeID}", s.handleGetNode)
			r.Patch("/node/{nodeID}", s.handlePatchNode)
			r.Patch("/node/{nodeID}/section/{section}", s.handlePatchNode)
			r.Delete("/node/{nodeID}", s.handleDeleteNode)
			r.Patch("/nodes", s.handlePatchNodes)

			r.Post("/search/{mode}", s.handleSearch)
		})

		r.Get("/subscribers", s.handleSubscribers)
		r.Get("/subscribers/for/{eventType}", s.handleSubscribersForEvent)
		r.Get("/subscriber/{id}", s.handleGetSubscriber)
		r.Put("/subscriber/{id}", s.handleUpdateSubscriber)
		r.Delete("/subscriber/{id}", s.handleDeleteSubscriber)
		r.Post("/subscriber/{id}/{messageType}", s.handleAddSubscription)
		r.Delete("/subscriber/{id}/{messageType}", s.handleDeleteSubscription)

		r.Post("/cli/evaluate", s.handleCLIEvaluate)
		r.Post("/cli/execute", s.handleCLIExecute)
		r.Get("/cli/info", s.handleCLIInfo)

		r.Get("/configs", s.handleListConfigs)
		r.Get("/configs/model", s.handleConfigsModel)
		r.Patch("/configs/model", s.handleUpdateConfigsModel)
		r.Get("/configs/validation", s.handleListConfigsValidation)
		r.Get("/config/{id}", s.handleGetConfig)
		r.Put("/config/{id}", s.handlePutConfig)
		r.Patch("/config/{id}", s.handlePatchConfig)
		r.Delete("/config/{id}", s.handleDeleteConfig)
		r.Get("/config/{id}/validation", s.handleGetConfigValidation)
		r.Put("/config/{id}/validation", s.handlePutConfigValidation)

		r.Get("/system/ping", textHandler("pong"))
		r.Get("/system/ready", textHandler("ok"))
	})

	return r
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.PSK != "" {
			if _, err := auth.VerifyRequest(s.PSK, r); err != nil {
				http.Error(w, "invalid or missing signature", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCACert(w http.ResponseWriter, r *http.Request) {
	if s.ca == nil {
		http.Error(w, "core is not running TLS", http.StatusNotFound)
		return
	}
	if s.PSK != "" {
		token, err := auth.SignToken(s.PSK, map[string]any{
			"sha256_fingerprint": trust.Fingerprint(s.ca.cert),
		}, 5*time.Minute)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Authorization", "Bearer "+token)
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write(s.ca.certPEM)
}

// graph handlers

func (s *Server) graph(name string) *graphState {
	g, ok := s.graphs[name]
	if !ok {
		g = &graphState{
			nodes:   map[string]lattice.JSONObject{},
			batches: map[string]*batchState{},
		}
		s.graphs[name] = g
	}
	return g
}

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.graphs))
	for name := range s.graphs {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	writeJSON(w, names)
}

func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	s.mu.Lock()
	g := s.graph(name)
	root, ok := g.nodes["root"]
	if !ok {
		root = lattice.JSONObject{"id": "root", "reported": lattice.JSONObject{"kind": "graph_root"}}
		g.nodes["root"] = root
	}
	s.mu.Unlock()
	writeJSON(w, root)
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	s.mu.Lock()
	g, ok := s.graphs[name]
	var root lattice.JSONObject
	if ok {
		root = g.nodes["root"]
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("graph %s not found", name), http.StatusNotFound)
		return
	}
	writeJSON(w, root)
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	truncate := r.URL.Query().Get("truncate") == "true"

	s.mu.Lock()
	_, ok := s.graphs[name]
	if ok {
		if truncate {
			s.graphs[name] = &graphState{
				nodes:   map[string]lattice.JSONObject{},
				batches: map[string]*batchState{},
			}
		} else {
			delete(s.graphs, name)
		}
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, fmt.Sprintf("graph %s not found", name), http.StatusNotFound)
		return
	}
	writeText(w, "Graph deleted.")
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	var update []lattice.JSONObject
	if !readJSON(w, r, &update) {
		return
	}

	s.mu.Lock()
	g := s.graph(name)
	result := applyUpdate(g.nodes, &g.edges, update)
	s.mu.Unlock()
	writeJSON(w, result)
}

// batch handlers

func (s *Server) handleBatchMerge(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	var update []lattice.JSONObject
	if !readJSON(w, r, &update) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(name)

	batchID := r.URL.Query().Get("batch_id")
	var batch *batchState
	if batchID == "" {
		batchID = uuid.NewString()
		batch = &batchState{
			id:      batchID,
			created: time.Now().UTC(),
			nodes:   map[string]lattice.JSONObject{},
		}
		g.batches[batchID] = batch
	} else {
		var ok bool
		batch, ok = g.batches[batchID]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown batch_id %s", batchID), http.StatusNotFound)
			return
		}
	}

	delta := applyUpdate(batch.nodes, &batch.edges, update)
	batch.totals = addUpdate(batch.totals, delta)

	w.Header().Set(lattice.BatchIDHeader, batchID)
	writeJSON(w, batch.totals)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")

	s.mu.Lock()
	g := s.graph(name)
	descriptors := make([]lattice.BatchDescriptor, 0, len(g.batches))
	for _, b := range g.batches {
		affected := make([]string, 0, len(b.nodes))
		for id := range b.nodes {
			affected = append(affected, id)
		}
		sort.Strings(affected)
		descriptors = append(descriptors, lattice.BatchDescriptor{
			ID:            b.id,
			Created:       b.created.Format(time.RFC3339),
			AffectedNodes: affected,
		})
	}
	s.mu.Unlock()

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].ID < descriptors[j].ID })
	writeNDJSON(w, descriptors)
}

func (s *Server) handleCommitBatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	batchID := chi.URLParam(r, "batchID")

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(name)
	batch, ok := g.batches[batchID]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown batch_id %s", batchID), http.StatusNotFound)
		return
	}

	for id, node := range batch.nodes {
		g.nodes[id] = node
	}
	g.edges += batch.edges
	delete(g.batches, batchID)
	writeJSON(w, batch.totals)
}

func (s *Server) handleAbortBatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	batchID := chi.URLParam(r, "batchID")

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(name)
	if _, ok := g.batches[batchID]; !ok {
		http.Error(w, fmt.Sprintf("unknown batch_id %s", batchID), http.StatusNotFound)
		return
	}
	delete(g.batches, batchID)
	writeJSON(w, lattice.JSONObject{"message": "batch aborted"})
}

// node handlers

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	nodeID := chi.URLParam(r, "nodeID")

	var node lattice.JSONObject
	if !readJSON(w, r, &node) {
		return
	}
	if node == nil {
		node = lattice.JSONObject{}
	}
	node["id"] = nodeID

	s.mu.Lock()
	s.graph(name).nodes[nodeID] = node
	s.mu.Unlock()
	writeJSON(w, node)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	nodeID := chi.URLParam(r, "nodeID")

	s.mu.Lock()
	node, ok := s.graph(name).nodes[nodeID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("node %s not found", nodeID), http.StatusNotFound)
		return
	}
	writeJSON(w, node)
}

func (s *Server) handlePatchNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	nodeID := chi.URLParam(r, "nodeID")
	section := chi.URLParam(r, "section")

	var patch lattice.JSONObject
	if !readJSON(w, r, &patch) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(name)
	node, ok := g.nodes[nodeID]
	if !ok {
		http.Error(w, fmt.Sprintf("node %s not found", nodeID), http.StatusNotFound)
		return
	}

	if section != "" {
		sectionDoc, _ := node[section].(map[string]any)
		if sectionDoc == nil {
			sectionDoc = map[string]any{}
		}
		for k, v := range patch {
			sectionDoc[k] = v
		}
		node[section] = sectionDoc
	} else {
		for k, v := range patch {
			node[k] = v
		}
	}
	writeJSON(w, node)
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	nodeID := chi.URLParam(r, "nodeID")

	s.mu.Lock()
	g := s.graph(name)
	_, ok := g.nodes[nodeID]
	delete(g.nodes, nodeID)
	s.mu.Unlock()

	if !ok {
		http.Error(w, fmt.Sprintf("node %s not found", nodeID), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePatchNodes(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	var patches []lattice.JSONObject
	if !readJSON(w, r, &patches) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.graph(name)
	updated := make([]lattice.JSONObject, 0, len(patches))
	for _, patch := range patches {
		id, _ := patch["id"].(string)
		node, ok := g.nodes[id]
		if !ok {
			node = lattice.JSONObject{}
			g.nodes[id] = node
		}
		for k, v := range patch {
			node[k] = v
		}
		updated = append(updated, node)
	}
	writeNDJSON(w, updated)
}

// search handlers

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "graph")
	mode := chi.URLParam(r, "mode")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	search := strings.TrimSpace(string(body))
	if search == "" {
		http.Error(w, "empty search", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	g := s.graph(name)
	nodes := make([]lattice.JSONObject, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	s.mu.Unlock()
	sort.Slice(nodes, func(i, j int) bool {
		a, _ := nodes[i]["id"].(string)
		b, _ := nodes[j]["id"].(string)
		return a < b
	})

	switch mode {
	case "raw":
		writeJSON(w, lattice.JSONObject{"query": search})
	case "explain":
		writeJSON(w, lattice.EstimatedSearchCost{
			EstimatedCost:    len(nodes),
			EstimatedNrItems: len(nodes),
			AvailableNrItems: len(nodes),
			Rating:           lattice.CostSimple,
		})
	case "aggregate":
		writeNDJSON(w, []lattice.JSONObject{{"count": len(nodes)}})
	case "list", "graph":
		writeNDJSON(w, nodes)
	default:
		http.Error(w, fmt.Sprintf("unknown search mode %s", mode), http.StatusNotFound)
	}
}

// subscriber handlers

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	subs := make([]lattice.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, *sub)
	}
	s.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	writeJSON(w, subs)
}

func (s *Server) handleSubscribersForEvent(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "eventType")
	s.mu.Lock()
	subs := make([]lattice.Subscriber, 0)
	for _, sub := range s.subscribers {
		if _, ok := sub.Subscriptions[eventType]; ok {
			subs = append(subs, *sub)
		}
	}
	s.mu.Unlock()
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	writeJSON(w, subs)
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	sub, ok := s.subscribers[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("subscriber %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, sub)
}

func (s *Server) handleUpdateSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var subscriptions []lattice.Subscription
	if !readJSON(w, r, &subscriptions) {
		return
	}

	sub := &lattice.Subscriber{ID: id, Subscriptions: map[string]lattice.Subscription{}}
	for _, entry := range subscriptions {
		sub.Subscriptions[entry.MessageType] = entry
	}

	s.mu.Lock()
	s.subscribers[id] = sub
	s.mu.Unlock()
	writeJSON(w, sub)
}

func (s *Server) handleDeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.subscribers[id]
	delete(s.subscribers, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("subscriber %s not found", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messageType := chi.URLParam(r, "messageType")
	timeout, _ := strconv.ParseInt(r.URL.Query().Get("timeout"), 10, 64)
	wait := r.URL.Query().Get("wait_for_completion") == "true"

	s.mu.Lock()
	sub, ok := s.subscribers[id]
	if !ok {
		sub = &lattice.Subscriber{ID: id, Subscriptions: map[string]lattice.Subscription{}}
		s.subscribers[id] = sub
	}
	sub.Subscriptions[messageType] = lattice.Subscription{
		MessageType:       messageType,
		WaitForCompletion: wait,
		TimeoutSeconds:    timeout,
	}
	s.mu.Unlock()
	writeJSON(w, sub)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messageType := chi.URLParam(r, "messageType")

	s.mu.Lock()
	sub, ok := s.subscribers[id]
	if ok {
		delete(sub.Subscriptions, messageType)
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("subscriber %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, sub)
}

// cli handlers

func (s *Server) handleCLIEvaluate(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	command := strings.TrimSpace(string(body))
	writeJSON(w, []lattice.JSONObject{{
		"parsed":  []lattice.JSONObject{{"cmd": command}},
		"env":     lattice.JSONObject{"graph": r.URL.Query().Get("graph")},
		"execute": []lattice.JSONObject{{"cmd": command}},
	}})
}

func (s *Server) handleCLIExecute(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		http.Error(w, fmt.Sprintf("raw command execution requires text/plain, got %s", ct), http.StatusBadRequest)
		return
	}
	body, _ := io.ReadAll(r.Body)
	writeJSON(w, []string{strings.TrimSpace(string(body))})
}

func (s *Server) handleCLIInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, lattice.JSONObject{
		"commands": []string{"search", "aggregate", "kinds"},
		"alias_names": lattice.JSONObject{
			"match": "search",
		},
	})
}

// config handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.configs))
	for id := range s.configs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	writeJSON(w, ids)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	cfg, ok := s.configs[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("config %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, cfg)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var cfg lattice.JSONObject
	if !readJSON(w, r, &cfg) {
		return
	}
	s.mu.Lock()
	s.configs[id] = cfg
	s.mu.Unlock()
	writeJSON(w, cfg)
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch lattice.JSONObject
	if !readJSON(w, r, &patch) {
		return
	}
	s.mu.Lock()
	cfg, ok := s.configs[id]
	if !ok {
		cfg = lattice.JSONObject{}
		s.configs[id] = cfg
	}
	for k, v := range patch {
		cfg[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.configs[id]
	delete(s.configs, id)
	delete(s.validations, id)
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("config %s not found", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfigsModel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()
	writeJSON(w, model)
}

func (s *Server) handleUpdateConfigsModel(w http.ResponseWriter, r *http.Request) {
	s.handleUpdateModel(w, r)
}

func (s *Server) handleListConfigsValidation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.validations))
	for id := range s.validations {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	writeJSON(w, ids)
}

func (s *Server) handleGetConfigValidation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	cv, ok := s.validations[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, fmt.Sprintf("validation for %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, cv)
}

func (s *Server) handlePutConfigValidation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var cv lattice.ConfigValidation
	if !readJSON(w, r, &cv) {
		return
	}
	cv.ID = id
	s.mu.Lock()
	s.validations[id] = cv
	s.mu.Unlock()
	writeJSON(w, cv)
}

// model handlers

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	model := s.model
	s.mu.Unlock()
	writeJSON(w, model)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	var update []lattice.Kind
	if !readJSON(w, r, &update) {
		return
	}

	s.mu.Lock()
	for _, kind := range update {
		replaced := false
		for i, existing := range s.model.Kinds {
			if existing.FQN == kind.FQN {
				s.model.Kinds[i] = kind
				replaced = true
				break
			}
		}
		if !replaced {
			s.model.Kinds = append(s.model.Kinds, kind)
		}
	}
	model := s.model
	s.mu.Unlock()
	writeJSON(w, model)
}

// update accounting

// applyUpdate merges update documents into nodes, counting nodes and edges
// the way the core reports them: documents with from/to are edges, everything
// else is a node keyed by id.
func applyUpdate(nodes map[string]lattice.JSONObject, edges *int, update []lattice.JSONObject) lattice.GraphUpdate {
	var result lattice.GraphUpdate
	for _, doc := range update {
		if _, isEdge := doc["from"]; isEdge {
			*edges++
			result.EdgesCreated++
			continue
		}
		id, _ := doc["id"].(string)
		if id == "" {
			id = uuid.NewString()
		}
		if _, exists := nodes[id]; exists {
			result.NodesUpdated++
		} else {
			result.NodesCreated++
		}
		nodes[id] = doc
	}
	return result
}

func addUpdate(a, b lattice.GraphUpdate) lattice.GraphUpdate {
	return lattice.GraphUpdate{
		NodesCreated: a.NodesCreated + b.NodesCreated,
		NodesUpdated: a.NodesUpdated + b.NodesUpdated,
		NodesDeleted: a.NodesDeleted + b.NodesDeleted,
		EdgesCreated: a.EdgesCreated + b.EdgesCreated,
		EdgesUpdated: a.EdgesUpdated + b.EdgesUpdated,
		EdgesDeleted: a.EdgesDeleted + b.EdgesDeleted,
	}
}

// response helpers

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeNDJSON[T any](w http.ResponseWriter, items []T) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, item := range items {
		_ = enc.Encode(item)
	}
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

func textHandler(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeText(w, text)
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}
