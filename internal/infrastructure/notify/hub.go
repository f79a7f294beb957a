package notify

import (
	"context"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stockledger-api/internal/application/inventory"
	"github.com/jhoicas/stockledger-api/internal/domain/entity"
	"github.com/jhoicas/stockledger-api/pkg/logger"
)

var _ inventory.Notifier = (*Hub)(nil)

// Conn lo mínimo que el hub necesita de una conexión websocket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub difunde los movimientos a los clientes websocket conectados.
type Hub struct {
	clients    map[Conn]bool
	register   chan Conn
	unregister chan Conn
	broadcast  chan []byte
	mutex      sync.Mutex
	log        *logger.Logger
}

// NewHub construye el hub. Run debe correr en su propia goroutine.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[Conn]bool),
		register:   make(chan Conn),
		unregister: make(chan Conn),
		broadcast:  make(chan []byte, 256),
		log:        log.Component("ws_hub"),
	}
}

// Run atiende registros y difusiones hasta que ctx termina.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.register:
			h.mutex.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug().Int("clients", n).Msg("cliente websocket conectado")

		case conn := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.broadcast:
			h.mutex.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					_ = conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register agrega una conexión.
func (h *Hub) Register(c Conn) { h.register <- c }

// Unregister quita y cierra una conexión.
func (h *Hub) Unregister(c Conn) { h.unregister <- c }

// Clients cantidad de clientes conectados.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Notify encola la difusión. Si el buffer está lleno la notificación se descarta.
func (h *Hub) Notify(ctx context.Context, n entity.MovementNotification) error {
	msg, err := encode(n)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.log.Warn().Str("resource_id", n.ResourceID).Msg("buffer de difusión lleno, notificación descartada")
	}
	return nil
}

// Handler endpoint websocket (GET /ws). Los mensajes entrantes se ignoran;
// la lectura solo detecta el cierre del cliente.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.Register(c)
		defer h.Unregister(c)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// Upgrade middleware que solo deja pasar peticiones de upgrade websocket.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
