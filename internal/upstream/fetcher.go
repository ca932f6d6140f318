// Package upstream implements the bulk-fetch capability against a WebSocket
// endpoint speaking the wire protocol. One Fetcher owns one connection and
// multiplexes concurrent fetch calls on it by request ID.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"keyfetch/internal/config"
	"keyfetch/internal/wire"
	"keyfetch/loader"
)

// Fetcher is a WebSocket client for a bulk-fetch upstream.
// Fetch satisfies loader.BatchFunc[string, json.RawMessage].
type Fetcher struct {
	wsURL             string
	requestTimeout    time.Duration
	reconnectInterval time.Duration
	pingInterval      time.Duration
	logger            zerolog.Logger

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	pending   map[int64]chan *wire.FetchResponse
	pendingMu sync.Mutex
	reqID     int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFetcher creates a new Fetcher for the configured upstream
func NewFetcher(cfg config.UpstreamConfig, logger zerolog.Logger) *Fetcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Fetcher{
		wsURL:             cfg.WSURL,
		requestTimeout:    cfg.GetRequestTimeoutDuration(),
		reconnectInterval: cfg.GetReconnectIntervalDuration(),
		pingInterval:      cfg.GetPingIntervalDuration(),
		logger:            logger.With().Str("component", "upstream").Logger(),
		pending:           make(map[int64]chan *wire.FetchResponse),
		ctx:               ctx,
		cancel:            cancel,
	}
}

// Connect establishes the WebSocket connection and starts the reader goroutine
func (f *Fetcher) Connect(ctx context.Context) error {
	f.connMu.Lock()
	if f.conn != nil {
		f.connMu.Unlock()
		return nil
	}
	f.connMu.Unlock()

	f.logger.Info().Str("url", f.wsURL).Msg("upstream connecting")
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect upstream: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	f.logger.Info().Str("url", f.wsURL).Msg("upstream connected")
	f.wg.Add(1)
	go f.readLoop()
	if f.pingInterval > 0 {
		f.wg.Add(1)
		go f.pingLoop()
	}
	return nil
}

// Connected returns true if the WebSocket connection is established
func (f *Fetcher) Connected() bool {
	f.connMu.RLock()
	ok := f.conn != nil
	f.connMu.RUnlock()
	return ok
}

// Close closes the connection and stops the reader
func (f *Fetcher) Close() {
	f.cancel()
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	f.failPending("upstream closed")
	f.wg.Wait()
	f.logger.Info().Msg("upstream disconnected")
}

// Fetch requests the values for keys in one upstream call. The returned
// slice is positionally aligned with keys; per-key upstream errors become
// *KeyError results, everything else is reported as a call-level error.
func (f *Fetcher) Fetch(ctx context.Context, keys []string) ([]loader.Result[json.RawMessage], error) {
	f.connMu.RLock()
	conn := f.conn
	f.connMu.RUnlock()

	if conn == nil {
		return nil, fmt.Errorf("upstream not connected")
	}

	reqID := atomic.AddInt64(&f.reqID, 1)
	respChan := make(chan *wire.FetchResponse, 1)

	f.pendingMu.Lock()
	f.pending[reqID] = respChan
	f.pendingMu.Unlock()

	reqBytes, err := json.Marshal(wire.NewFetchRequest(reqID, keys))
	if err != nil {
		f.removePending(reqID)
		return nil, fmt.Errorf("failed to marshal fetch request: %w", err)
	}

	f.writeMu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, reqBytes)
	f.writeMu.Unlock()
	if writeErr != nil {
		f.removePending(reqID)
		return nil, fmt.Errorf("failed to send fetch request: %w", writeErr)
	}

	f.logger.Debug().Int64("id", reqID).Int("keys", len(keys)).Msg("fetch sent")

	if f.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()
	}

	select {
	case resp := <-respChan:
		if resp == nil {
			return nil, fmt.Errorf("upstream connection lost")
		}
		return convertResponse(keys, resp)
	case <-ctx.Done():
		f.removePending(reqID)
		return nil, ctx.Err()
	}
}

// convertResponse turns a wire response into loader results
func convertResponse(keys []string, resp *wire.FetchResponse) ([]loader.Result[json.RawMessage], error) {
	if resp.HasError() {
		return nil, fmt.Errorf("upstream error: %s", resp.Error)
	}
	if len(resp.Results) != len(keys) {
		return nil, fmt.Errorf("upstream returned %d results for %d keys", len(resp.Results), len(keys))
	}

	results := make([]loader.Result[json.RawMessage], len(keys))
	for i, kr := range resp.Results {
		if kr.HasError() {
			results[i] = loader.Result[json.RawMessage]{Err: &KeyError{Key: keys[i], Message: kr.Error}}
		} else {
			results[i] = loader.Result[json.RawMessage]{Value: kr.Value}
		}
	}
	return results, nil
}

func (f *Fetcher) removePending(reqID int64) {
	f.pendingMu.Lock()
	delete(f.pending, reqID)
	f.pendingMu.Unlock()
}

// failPending answers every in-flight call with nil, read by Fetch as a
// lost connection.
func (f *Fetcher) failPending(reason string) {
	f.pendingMu.Lock()
	n := len(f.pending)
	for _, ch := range f.pending {
		select {
		case ch <- nil:
		default:
		}
	}
	f.pending = make(map[int64]chan *wire.FetchResponse)
	f.pendingMu.Unlock()

	if n > 0 {
		f.logger.Warn().Int("inFlight", n).Str("reason", reason).Msg("failed pending fetches")
	}
}

func (f *Fetcher) readLoop() {
	defer f.wg.Done()
	for {
		f.connMu.RLock()
		conn := f.conn
		f.connMu.RUnlock()

		if conn == nil {
			if !f.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.ctx.Done():
				return
			default:
			}
			f.logger.Warn().Err(err).Msg("upstream read error")
			if !f.reconnect() {
				return
			}
			continue
		}

		f.handleMessage(data)
	}
}

func (f *Fetcher) handleMessage(data []byte) {
	resp, err := wire.ParseResponse(data)
	if err != nil {
		f.logger.Warn().Err(err).Int("len", len(data)).Msg("upstream message parse error")
		return
	}

	f.pendingMu.Lock()
	ch, exists := f.pending[resp.ID]
	if exists {
		delete(f.pending, resp.ID)
	}
	f.pendingMu.Unlock()

	if !exists {
		f.logger.Warn().Int64("id", resp.ID).Msg("response for unknown request")
		return
	}

	select {
	case ch <- resp:
	default:
	}
}

// reconnect drops the current connection, fails everything in flight and
// dials until it succeeds or the fetcher shuts down. Returns false on
// shutdown.
func (f *Fetcher) reconnect() bool {
	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	f.failPending("connection lost")

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	interval := f.reconnectInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	for {
		select {
		case <-f.ctx.Done():
			return false
		case <-time.After(interval):
		}

		f.logger.Info().Str("url", f.wsURL).Msg("upstream reconnection attempt")

		ctx, cancel := context.WithTimeout(f.ctx, 30*time.Second)
		conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
		cancel()
		if err != nil {
			f.logger.Warn().Err(err).Dur("nextRetry", interval).Msg("upstream reconnection failed, will retry")
			continue
		}

		f.connMu.Lock()
		f.conn = conn
		f.connMu.Unlock()

		f.logger.Info().Str("url", f.wsURL).Msg("upstream reconnected")
		return true
	}
}

func (f *Fetcher) pingLoop() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
			f.connMu.RLock()
			conn := f.conn
			f.connMu.RUnlock()
			if conn == nil {
				continue
			}
			f.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second))
			f.writeMu.Unlock()
			if err != nil {
				f.logger.Debug().Err(err).Msg("ping write failed")
			}
		}
	}
}
