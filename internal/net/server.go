package net

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/common"
	"matchbook/internal/engine"
	"matchbook/internal/server"
)

const (
	maxMessageSize     = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

// session is one connected client, identified by a session-scoped uuid
// independent of its transport address.
type session struct {
	id   uuid.UUID
	conn net.Conn
}

// Server is the TCP gateway: it owns an
// engine.OrderBook, parses incoming wire commands into OrderBook calls, and
// registers itself as an Observer so every engine event is pushed back out
// to every connected session as a Report. It never mutates the book
// directly outside of the methods OrderBook itself exposes, and it holds
// bookLock around every such call, so commands from concurrent connections
// reach the single-threaded book one at a time.
type Server struct {
	address  string
	port     int
	book     *engine.OrderBook
	bookLock sync.Mutex
	pool     server.WorkerPool

	sessionsLock sync.Mutex
	sessions     map[string]*session

	clientID uint64
}

// New constructs a gateway bound to address:port, driving book.
func New(address string, port int, book *engine.OrderBook) *Server {
	s := &Server{
		address:  address,
		port:     port,
		book:     book,
		pool:     server.NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]*session),
	}
	s.clientID = book.RegisterObserver(s)
	return s
}

// Run starts the gateway under sup, blocking until the listener exits or
// sup's context is cancelled.
func (s *Server) Run(sup *server.Supervisor) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(sup.Context(), "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}
	go func() {
		<-sup.Context().Done()
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	s.pool.Setup(sup.Tomb(), s.handleConnection)

	log.Info().Str("address", listener.Addr().String()).Msg("gateway listening")

	for {
		select {
		case <-sup.Context().Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-sup.Context().Done():
					return nil
				default:
					log.Error().Err(err).Msg("error accepting client")
					continue
				}
			}

			sess := s.addSession(conn)
			log.Info().Str("address", conn.RemoteAddr().String()).Str("session_id", sess.id.String()).Msg("client connected")
			s.pool.AddTask(conn)
		}
	}
}

// Shutdown unregisters the gateway from the book and closes every open
// session.
func (s *Server) Shutdown() {
	s.book.UnregisterObserver(s.clientID)

	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	for addr, sess := range s.sessions {
		if err := sess.conn.Close(); err != nil {
			log.Error().Err(err).Str("address", addr).Msg("error closing session")
		}
	}
	s.sessions = make(map[string]*session)
}

// handleConnection is a worker-pool task: read one message off conn,
// dispatch it to the book, and re-enqueue conn for its next message. A read
// failure drops the session; a message that fails to parse is logged and
// skipped, and conn is re-enqueued. Fatal errors are never returned
// from here, so one bad connection never brings down the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting deadline")
		s.dropSession(conn)
		return nil
	}

	buffer := make([]byte, maxMessageSize)
	n, err := conn.Read(buffer)
	if err != nil {
		log.Debug().Err(err).Str("address", conn.RemoteAddr().String()).Msg("connection closed")
		s.dropSession(conn)
		return nil
	}

	msg, err := ParseMessage(buffer[:n])
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
		s.pool.AddTask(conn)
		return nil
	}

	s.dispatch(msg)
	s.pool.AddTask(conn)
	return nil
}

func (s *Server) dispatch(msg any) {
	s.bookLock.Lock()
	defer s.bookLock.Unlock()

	switch m := msg.(type) {
	case AddOrderMessage:
		if err := s.book.AddOrderAt(m.OrderID, m.UserID, m.Side, m.Quantity, m.Price, m.TsReceived, m.TsExecuted); err != nil {
			log.Debug().Err(err).Uint64("order_id", m.OrderID).Msg("add_order rejected")
		}
	case CancelOrderMessage:
		if err := s.book.CancelOrder(m.OrderID); err != nil {
			log.Debug().Err(err).Uint64("order_id", m.OrderID).Msg("cancel_order rejected")
		}
	case ModifyOrderMessage:
		if err := s.book.ModifyOrder(m.OrderID, m.NewQuantity, m.NewPrice); err != nil {
			log.Debug().Err(err).Uint64("order_id", m.OrderID).Msg("modify_order rejected")
		}
	}
}

func (s *Server) addSession(conn net.Conn) *session {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	sess := &session{id: uuid.New(), conn: conn}
	s.sessions[conn.RemoteAddr().String()] = sess
	return sess
}

func (s *Server) dropSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.sessions, conn.RemoteAddr().String())
	_ = conn.Close()
}

// broadcast fans a Report out to every connected session, dropping any
// session whose write fails.
func (s *Server) broadcast(r *Report) {
	payload := r.Serialize()

	s.sessionsLock.Lock()
	targets := make(map[string]*session, len(s.sessions))
	for addr, sess := range s.sessions {
		targets[addr] = sess
	}
	s.sessionsLock.Unlock()

	for addr, sess := range targets {
		if _, err := sess.conn.Write(payload); err != nil {
			log.Error().Err(err).Str("address", addr).Str("session_id", sess.id.String()).Msg("failed sending report")
			s.dropSession(sess.conn)
		}
	}
}

// --- engine.Observer implementation: every book event becomes a Report
// broadcast to every connected session. ---

// Name identifies this observer in engine logs and diagnostics.
func (s *Server) Name() string {
	return fmt.Sprintf("tcp-gateway:%s:%d", s.address, s.port)
}

func (s *Server) OnInit() {}

func (s *Server) OnShutdown() {}

func (s *Server) OnTradeExecuted(trade common.Trade) {
	s.broadcast(&Report{
		Type:             ReportTradeExecuted,
		ExecutionID:      trade.ExecutionID,
		AggressorOrderID: trade.AggressorOrderID,
		RestingOrderID:   trade.RestingOrderID,
		AggressorUserID:  trade.AggressorUserID,
		RestingUserID:    trade.RestingUserID,
		Price:            trade.Price,
		Quantity:         trade.Quantity,
		TsReceived:       trade.TsReceived,
		TsExecuted:       trade.TsExecuted,
	})
}

func (s *Server) OnOrderAcknowledged(orderID uint64) {
	s.broadcast(&Report{Type: ReportOrderAcknowledged, OrderID: orderID})
}

func (s *Server) OnOrderCancelled(orderID uint64) {
	s.broadcast(&Report{Type: ReportOrderCancelled, OrderID: orderID})
}

func (s *Server) OnOrderModified(orderID, newQuantity, newPrice uint64) {
	s.broadcast(&Report{
		Type:        ReportOrderModified,
		OrderID:     orderID,
		NewQuantity: newQuantity,
		NewPrice:    newPrice,
	})
}

func (s *Server) OnOrderRejected(orderID uint64, reason string) {
	s.broadcast(&Report{Type: ReportOrderRejected, OrderID: orderID, Reason: reason})
}

func (s *Server) OnTopOfBookUpdate(bestBid, bestAsk, bidVolume, askVolume uint64) {
	s.broadcast(&Report{
		Type:    ReportTopOfBookUpdate,
		BestBid: bestBid,
		BestAsk: bestAsk,
		Volume:  bidVolume + askVolume,
	})
}
