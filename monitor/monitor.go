// Package monitor publishes what the MTP server is doing: counters and
// rates over HTTP, and a live feed of transactions and events over
// WebSocket.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulbellamy/ratecounter"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/hanwen/go-mtpd/log"
	"github.com/hanwen/go-mtpd/mtp"
	"github.com/hanwen/go-mtpd/server"
)

// Item is one entry of the live feed.
type Item struct {
	Type        string    `json:"type"`
	Code        uint16    `json:"code"`
	Name        string    `json:"name"`
	Param       uint32    `json:"param,omitempty"`
	Transaction uint32    `json:"transaction,omitempty"`
	Response    string    `json:"response,omitempty"`
	Time        time.Time `json:"time"`
}

type Stats struct {
	Transactions          int64  `json:"transactions"`
	Errors                int64  `json:"errors"`
	Events                int64  `json:"events"`
	Bytes                 int64  `json:"bytes"`
	TransactionsPerSecond int64  `json:"transactions_per_second"`
	BytesPerSecond        int64  `json:"bytes_per_second"`
	SessionOpen           bool   `json:"session_open"`
	SessionID             uint32 `json:"session_id"`
	LastOperation         string `json:"last_operation"`
}

// ControlPayload is accepted on the /live socket.
type ControlPayload struct {
	// Seconds between stats pushes.
	Interval *int  `json:"interval,omitempty"`
	Rescan   *bool `json:"rescan,omitempty"`
}

type Options struct {
	// StatsInterval is the initial period of stats pushes on /live.
	StatsInterval time.Duration

	// Rescan, when set, is run for POST /rescan and control requests.
	Rescan func() error

	Log *log.ChildLogger
}

// Monitor implements server.Observer.
type Monitor struct {
	items chan Item

	txRate   *ratecounter.RateCounter
	byteRate *ratecounter.RateCounter

	transactions *atomic.Int64
	errors       *atomic.Int64
	events       *atomic.Int64
	bytes        *atomic.Int64
	sessionOpen  *atomic.Bool
	sessionID    *atomic.Uint32
	lastOp       *atomic.String

	upgrader      websocket.Upgrader
	feedClients   map[*websocket.Conn]bool
	feedLock      sync.Mutex
	liveClients   map[*websocket.Conn]bool
	liveLock      sync.Mutex
	statsTicker   *MutableTicker
	rescan        func() error
	rescanLock    sync.Mutex
	rescanNowChan chan bool

	eg  *errgroup.Group
	ctx context.Context
	log *log.ChildLogger
}

var _ server.Observer = (*Monitor)(nil)

func New(ctx context.Context, opts Options) *Monitor {
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = time.Second
	}
	if opts.Log == nil {
		opts.Log = log.Quiet().Monitor
	}
	eg, egCtx := errgroup.WithContext(ctx)

	return &Monitor{
		items: make(chan Item, 256),

		txRate:   ratecounter.NewRateCounter(time.Second),
		byteRate: ratecounter.NewRateCounter(time.Second),

		transactions: atomic.NewInt64(0),
		errors:       atomic.NewInt64(0),
		events:       atomic.NewInt64(0),
		bytes:        atomic.NewInt64(0),
		sessionOpen:  atomic.NewBool(false),
		sessionID:    atomic.NewUint32(0),
		lastOp:       atomic.NewString(""),

		feedClients:   map[*websocket.Conn]bool{},
		liveClients:   map[*websocket.Conn]bool{},
		statsTicker:   NewMutableTicker(egCtx, opts.StatsInterval),
		rescan:        opts.Rescan,
		rescanNowChan: make(chan bool, 1),

		eg:  eg,
		ctx: egCtx,
		log: opts.Log,
	}
}

// Observer

func (m *Monitor) push(it Item) {
	it.Time = time.Now()
	select {
	case m.items <- it:
	default:
		m.log.Debugf("feed full, dropping %s %s", it.Type, it.Name)
	}
}

func (m *Monitor) Transaction(op, rc uint16, tid uint32) {
	m.transactions.Inc()
	if rc != mtp.RC_OK {
		m.errors.Inc()
	}
	m.txRate.Incr(1)
	name := mtp.OperationName(op)
	m.lastOp.Store(name)
	m.push(Item{
		Type:        "transaction",
		Code:        op,
		Name:        name,
		Transaction: tid,
		Response:    mtp.ResponseName(rc),
	})
}

func (m *Monitor) Event(code uint16, param uint32) {
	m.events.Inc()
	m.push(Item{
		Type:  "event",
		Code:  code,
		Name:  mtp.EventName(code),
		Param: param,
	})
}

func (m *Monitor) Transferred(n int64) {
	m.bytes.Add(n)
	m.byteRate.Incr(n)
}

func (m *Monitor) Session(open bool, id uint32) {
	m.sessionOpen.Store(open)
	m.sessionID.Store(id)
	name := "closed"
	if open {
		name = "opened"
	}
	m.push(Item{
		Type:  "session",
		Name:  name,
		Param: id,
	})
}

func (m *Monitor) Stats() Stats {
	return Stats{
		Transactions:          m.transactions.Load(),
		Errors:                m.errors.Load(),
		Events:                m.events.Load(),
		Bytes:                 m.bytes.Load(),
		TransactionsPerSecond: m.txRate.Rate(),
		BytesPerSecond:        m.byteRate.Rate(),
		SessionOpen:           m.sessionOpen.Load(),
		SessionID:             m.sessionID.Load(),
		LastOperation:         m.lastOp.Load(),
	}
}

// HTTP handler / WebSocket

func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stats", m.HandleStats)
	mux.HandleFunc("/rescan", m.HandleRescan)
	mux.HandleFunc("/events", m.HandleEvents)
	mux.HandleFunc("/live", m.HandleLive)
	return log.HTTPLogHandler(mux)
}

func (m *Monitor) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.Stats()); err != nil {
		m.log.WithField("handler", "stats").Errorf("failed to encode: %s", err)
	}
}

func (m *Monitor) HandleRescan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	if m.rescan == nil {
		http.Error(w, "rescan not available", http.StatusNotImplemented)
		return
	}
	if err := m.runRescan(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Monitor) runRescan() error {
	m.rescanLock.Lock()
	defer m.rescanLock.Unlock()
	return m.rescan()
}

// HandleEvents streams Items to the client until it disconnects.
func (m *Monitor) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.WithField("handler", "events").Errorf("failed to upgrade: %s", err)
		return
	}
	defer ws.Close()

	m.register(&m.feedLock, m.feedClients, ws)
	defer m.unregister(&m.feedLock, m.feedClients, ws)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			m.log.WithField("handler", "events").Debugf("client gone: %s", err)
			return
		}
	}
}

// HandleLive pushes Stats periodically and accepts ControlPayload
// messages.
func (m *Monitor) HandleLive(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.WithField("handler", "live").Errorf("failed to upgrade: %s", err)
		return
	}
	defer ws.Close()

	m.register(&m.liveLock, m.liveClients, ws)
	defer m.unregister(&m.liveLock, m.liveClients, ws)
	for {
		var p ControlPayload
		if err := ws.ReadJSON(&p); err != nil {
			m.log.WithField("handler", "live").Debugf("client gone: %s", err)
			return
		}

		if p.Interval != nil {
			if *p.Interval < 1 {
				m.log.WithField("handler", "live").Warningf("invalid interval: %d", *p.Interval)
			} else {
				m.statsTicker.SetInterval(time.Duration(*p.Interval) * time.Second)
				m.log.Debugf("stats interval: %ds", *p.Interval)
			}
		}
		if p.Rescan != nil && *p.Rescan && m.rescan != nil {
			select {
			case m.rescanNowChan <- true:
			default:
			}
		}
	}
}

func (m *Monitor) register(mu *sync.Mutex, clients map[*websocket.Conn]bool, c *websocket.Conn) {
	mu.Lock()
	defer mu.Unlock()
	clients[c] = true
}

func (m *Monitor) unregister(mu *sync.Mutex, clients map[*websocket.Conn]bool, c *websocket.Conn) {
	mu.Lock()
	defer mu.Unlock()
	delete(clients, c)
}

func (m *Monitor) numClients() int {
	m.feedLock.Lock()
	defer m.feedLock.Unlock()
	m.liveLock.Lock()
	defer m.liveLock.Unlock()
	return len(m.feedClients) + len(m.liveClients)
}

// Workers

// Run broadcasts until ctx is done. With a non-empty addr it also
// serves Handler there.
func (m *Monitor) Run(addr string) error {
	m.eg.Go(m.workerBroadcastFeed)
	m.eg.Go(m.workerBroadcastStats)
	m.eg.Go(m.workerRescan)
	if addr != "" {
		srv := &http.Server{Addr: addr, Handler: m.Handler()}
		m.eg.Go(func() error {
			m.log.Infof("listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		m.eg.Go(func() error {
			<-m.ctx.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		})
	}
	return m.eg.Wait()
}

func (m *Monitor) broadcast(mu *sync.Mutex, clients map[*websocket.Conn]bool, v interface{}) {
	j, err := json.Marshal(v)
	if err != nil {
		m.log.Errorf("failed to marshal payload: %s", err)
		return
	}

	mu.Lock()
	defer mu.Unlock()
	for c := range clients {
		if err := c.WriteMessage(websocket.TextMessage, j); err != nil {
			m.log.Debugf("failed to send: %s", err)
		}
	}
}

func (m *Monitor) workerBroadcastFeed() error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case it := <-m.items:
			m.broadcast(&m.feedLock, m.feedClients, it)
		}
	}
}

func (m *Monitor) workerBroadcastStats() error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.statsTicker.C:
		}
		m.broadcast(&m.liveLock, m.liveClients, m.Stats())
	}
}

func (m *Monitor) workerRescan() error {
	for {
		select {
		case <-m.ctx.Done():
			return nil
		case <-m.rescanNowChan:
		}
		if err := m.runRescan(); err != nil {
			m.log.Warningf("rescan: %s", err)
		}
	}
}
