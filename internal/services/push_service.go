package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/metrics"
	"customs-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin is enforced by the CORS layer in front of the upgrade
		return true
	},
}

// Connection is one dashboard websocket session
type Connection struct {
	ID       string
	UserID   string
	Conn     *websocket.Conn
	Send     chan []byte
	LastPing time.Time
}

// PushMessage is the wire format for dashboard pushes
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	UserID    string      `json:"user_id"`
	Data      interface{} `json:"data"`
}

// PushService fans status updates out to connected dashboard sessions over
// websocket. Messages are routed to the owning user's connections; it also
// implements EventPublisher so domain services can stay transport-agnostic.
type PushService struct {
	connections map[string]*Connection
	userConns   map[string][]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	mutex       sync.RWMutex
	logger      *logrus.Entry
}

// NewPushService creates the push hub and starts its dispatch loop
func NewPushService() *PushService {
	s := &PushService{
		connections: make(map[string]*Connection),
		userConns:   make(map[string][]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		logger:      logrus.WithField("component", "push_service"),
	}
	go s.run()
	return s
}

func (s *PushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case message := <-s.hub:
			s.handleBroadcast(message)
		}
	}
}

func (s *PushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.connections[conn.ID] = conn
	s.userConns[conn.UserID] = append(s.userConns[conn.UserID], conn)
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	s.logger.WithFields(logrus.Fields{
		"user_id": conn.UserID,
		"conn_id": conn.ID,
	}).Info("websocket connection registered")
}

func (s *PushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.connections[conn.ID]; !exists {
		return
	}
	delete(s.connections, conn.ID)

	conns := s.userConns[conn.UserID]
	for i, c := range conns {
		if c.ID == conn.ID {
			s.userConns[conn.UserID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(s.userConns[conn.UserID]) == 0 {
		delete(s.userConns, conn.UserID)
	}
	metrics.WebSocketConnections.Set(float64(len(s.connections)))

	close(conn.Send)
	conn.Conn.Close()

	s.logger.WithFields(logrus.Fields{
		"user_id": conn.UserID,
		"conn_id": conn.ID,
	}).Info("websocket connection unregistered")
}

func (s *PushService) handleBroadcast(message PushMessage) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	conns, exists := s.userConns[message.UserID]
	if !exists {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal push message")
		return
	}

	for _, conn := range conns {
		select {
		case conn.Send <- data:
		default:
			// Slow consumer; drop rather than block the hub
			s.logger.WithField("conn_id", conn.ID).Warn("push channel full, message dropped")
		}
	}
}

// HandleWebSocket upgrades the request and runs the session pumps until the
// client disconnects.
func (s *PushService) HandleWebSocket(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connection := &Connection{
		ID:       fmt.Sprintf("conn_%d", time.Now().UnixNano()),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		LastPing: time.Now(),
	}

	s.register <- connection

	go s.writePump(connection)
	go s.readPump(connection)
}

func (s *PushService) writePump(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *PushService) readPump(conn *Connection) {
	defer func() {
		s.unregister <- conn
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).WithField("conn_id", conn.ID).Warn("websocket read error")
			}
			return
		}
	}
}

// ActiveConnections returns the current session count
func (s *PushService) ActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

func (s *PushService) push(userID, msgType string, data interface{}) {
	message := PushMessage{
		Type:      msgType,
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: fmt.Sprintf("msg_%d", time.Now().UnixNano()),
		UserID:    userID,
		Data:      data,
	}
	select {
	case s.hub <- message:
	default:
		s.logger.Warn("push hub full, message dropped")
	}
}

// ==================== EventPublisher ====================

// Push payloads mirror the REST shapes so the dashboard can apply them to
// its stores without refetching.

func (s *PushService) PublishPackageStatus(pkg *models.Package, action string) {
	s.push(pkg.UserID, "package_update", map[string]interface{}{
		"action":  action,
		"package": pkg,
	})
}

func (s *PushService) PublishShipmentStatus(shipment *models.Shipment, action string) {
	s.push(shipment.UserID, "shipment_update", map[string]interface{}{
		"action":   action,
		"shipment": shipment,
	})
}

func (s *PushService) PublishRetryOutcome(record *models.FailureRecord, success bool) {
	s.push(record.UserID, "retry_update", map[string]interface{}{
		"failure_id":   record.ID,
		"success":      success,
		"retry_status": record.RetryStatus,
		"retry_count":  record.RetryCount,
	})
}
