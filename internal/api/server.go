package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"cakery-bench/internal/events"
	"cakery-bench/internal/logger"
	"cakery-bench/internal/scenario"
	"cakery-bench/internal/transport/memory"
)

// Server はステータスAPIサーバー
type Server struct {
	addr     string
	bus      *events.Bus
	registry *prometheus.Registry
	baseCtx  context.Context

	mu         sync.RWMutex
	engine     *scenario.Engine
	collector  prometheus.Collector
	cancel     context.CancelFunc
	lastResult *scenario.Result
	wsClients  map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する。busがあればイベントをWebSocketへ転送する
func NewServer(addr string, bus *events.Bus) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Server{
		addr:      addr,
		bus:       bus,
		registry:  registry,
		baseCtx:   context.Background(),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// Attach は外部で実行するEngineを公開対象にする
func (s *Server) Attach(engine *scenario.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachLocked(engine)
}

func (s *Server) attachLocked(engine *scenario.Engine) {
	if s.collector != nil {
		s.registry.Unregister(s.collector)
	}
	s.engine = engine
	s.collector = engine.Collector()
	if err := s.registry.Register(s.collector); err != nil {
		logger.Warn("", "Failed to register run collector: %v", err)
	}
}

// SetResult は直近の実行結果を記録する
func (s *Server) SetResult(result *scenario.Result) {
	s.mu.Lock()
	s.lastResult = result
	s.mu.Unlock()

	s.broadcast(map[string]interface{}{
		"type":   "scenario_complete",
		"result": result,
	})
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/nodes", s.handleNodes)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/result", s.handleResult)
	mux.HandleFunc("/api/scenario/start", s.handleScenarioStart)
	mux.HandleFunc("/api/scenario/stop", s.handleScenarioStop)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctxが終了するまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.baseCtx = ctx
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでメトリクスとイベントを配信
	go s.broadcastLoop(ctx)
	if s.bus != nil {
		go s.forwardEvents(ctx)
	}

	logger.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running        bool                   `json:"running"`
	RunID          string                 `json:"run_id,omitempty"`
	ScenarioName   string                 `json:"scenario_name,omitempty"`
	Backend        string                 `json:"backend,omitempty"`
	Warmup         *scenario.WarmupStatus `json:"warmup,omitempty"`
	PutErrors      uint64                 `json:"put_errors"`
	GetErrors      uint64                 `json:"get_errors"`
	NodeCount      int                    `json:"node_count"`
	RunningNodes   int                    `json:"running_nodes"`
	StoppedNodes   int                    `json:"stopped_nodes"`
	SuspendedNodes int                    `json:"suspended_nodes"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	var resp StatusResponse
	if engine == nil {
		return resp
	}

	config := engine.Config()
	warmup := engine.Warmup()
	counters := engine.Counters()
	resp.Running = engine.IsRunning()
	resp.RunID = engine.RunID()
	resp.ScenarioName = config.Name
	resp.Backend = string(config.Backend.Kind)
	resp.Warmup = &warmup
	resp.PutErrors = counters.PutErrors()
	resp.GetErrors = counters.GetErrors()

	if c := engine.Cluster(); c != nil {
		resp.NodeCount = c.Size()
		for _, n := range c.Nodes() {
			switch n.Status() {
			case memory.StatusRunning:
				resp.RunningNodes++
			case memory.StatusStopped:
				resp.StoppedNodes++
			case memory.StatusSuspended:
				resp.SuspendedNodes++
			}
		}
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status())
}

// NodeInfo はノード情報
type NodeInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Size   int    `json:"size"`
	Delay  string `json:"delay,omitempty"`
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	nodes := []NodeInfo{}
	if engine != nil {
		if c := engine.Cluster(); c != nil {
			for _, n := range c.Nodes() {
				info := NodeInfo{
					ID:     n.ID(),
					Status: n.Status().String(),
					Size:   n.Size(),
				}
				if d := n.Delay(); d > 0 {
					info.Delay = d.String()
				}
				nodes = append(nodes, info)
			}
		}
	}

	s.writeJSON(w, nodes)
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	TotalRequests   uint64  `json:"total_requests"`
	SuccessRequests uint64  `json:"success_requests"`
	FailedRequests  uint64  `json:"failed_requests"`
	RPS             float64 `json:"rps"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	P50LatencyMs    float64 `json:"p50_latency_ms"`
	P99LatencyMs    float64 `json:"p99_latency_ms"`
	ErrorRate       float64 `json:"error_rate"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	resp := MetricsResponse{}
	if engine != nil {
		if snapshot := engine.Metrics(); snapshot != nil {
			resp = MetricsResponse{
				TotalRequests:   snapshot.TotalRequests,
				SuccessRequests: snapshot.SuccessRequests,
				FailedRequests:  snapshot.FailedRequests,
				RPS:             snapshot.OverallRPS,
				AvgLatencyMs:    float64(snapshot.AverageLatency) / float64(time.Millisecond),
				P50LatencyMs:    float64(snapshot.P50Latency) / float64(time.Millisecond),
				P99LatencyMs:    float64(snapshot.P99Latency) / float64(time.Millisecond),
				ErrorRate:       snapshot.ErrorRate,
			}
		}
	}

	s.writeJSON(w, resp)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	result := s.lastResult
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "No result yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, result)
}

// ScenarioRequest はシナリオ開始リクエスト
type ScenarioRequest struct {
	Preset   string `json:"preset"`
	Duration string `json:"duration,omitempty"`
	Requests uint64 `json:"requests,omitempty"`
	Nodes    int    `json:"nodes,omitempty"`
}

func (s *Server) handleScenarioStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, ok := scenario.GetPreset(req.Preset)
	if !ok {
		http.Error(w, "Unknown preset", http.StatusBadRequest)
		return
	}
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, "Invalid duration", http.StatusBadRequest)
			return
		}
		config.Duration = d
	}
	if req.Requests > 0 {
		config.Requests = req.Requests
	}
	if req.Nodes > 0 {
		config.NodeCount = req.Nodes
	}
	if err := config.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.cancel != nil || (s.engine != nil && s.engine.IsRunning()) {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	engine := scenario.New(config)
	engine.SetEventBus(s.bus)
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.attachLocked(engine)
	s.mu.Unlock()

	// バックグラウンドで実行
	go func() {
		defer cancel()
		result, err := engine.Run(ctx)

		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()

		if err != nil {
			logger.Error("", "Scenario failed: %v", err)
		}
		if result != nil {
			logger.Info("", "Scenario completed: %d requests", result.TotalRequests)
			s.SetResult(result)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, map[string]string{"status": "started", "scenario": config.Name, "run_id": engine.RunID()})
}

func (s *Server) handleScenarioStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()

	if cancel == nil {
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}
	cancel()

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Backend     string `json:"backend"`
	Description string `json:"description"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := scenario.ListPresets()
	presets := make([]PresetInfo, 0, len(names))
	for _, name := range names {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Backend:     string(config.Backend.Kind),
			Description: config.Description,
		})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中のWebSocketクライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data interface{}) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}

			s.broadcast(map[string]interface{}{
				"type":   "status",
				"status": status,
			})
		}
	}
}

// forwardEvents はイベントバスの内容をWebSocketクライアントへ転送する
func (s *Server) forwardEvents(ctx context.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(map[string]interface{}{
				"type":  "event",
				"event": e,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
