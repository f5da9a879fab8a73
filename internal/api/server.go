package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ecglatent/internal/config"
	"ecglatent/internal/service"
	"ecglatent/models"
	"ecglatent/templates"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client получатель сообщений (websocket соединение или gRPC stream)
type client interface {
	send(msg Message) error
	close()
}

// wsClient сериализует записи в одно websocket соединение
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *wsClient) close() {
	c.conn.Close()
}

type Server struct {
	Config   *config.Config
	Latent   *service.LatentService
	ModelMgr *models.Manager

	clients map[client]bool
	mu      sync.Mutex
}

func NewServer(cfg *config.Config, latent *service.LatentService, modelMgr *models.Manager) *Server {
	s := &Server{
		Config:   cfg,
		Latent:   latent,
		ModelMgr: modelMgr,
		clients:  make(map[client]bool),
	}
	s.setupCallbacks()
	return s
}

// Handler возвращает HTTP обработчики сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/models", s.handleModelsAPI)
	mux.HandleFunc("/api/prototypes", s.handlePrototypesAPI)
	return mux
}

// Start запускает gRPC в фоне и HTTP сервер в текущей горутине
func (s *Server) Start() error {
	go s.startGRPCServer()

	log.Printf("[API] listening on :%s", s.Config.Port)
	return http.ListenAndServe(":"+s.Config.Port, s.Handler())
}

func (s *Server) setupCallbacks() {
	if s.ModelMgr == nil {
		return
	}
	s.ModelMgr.SetProgressCallback(func(id models.ModelID, progress float64, status models.ModelStatus, err error) {
		errStr := ""
		if err != nil {
			errStr = err.Error()
		}
		s.broadcast(Message{
			Type:     TypeModelProgress,
			ModelID:  string(id),
			Progress: progress,
			Data:     string(status),
			Error:    errStr,
		})
	})
}

func (s *Server) addClient(c client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
}

func (s *Server) removeClient(c client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	clients := make([]client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		if err := c.send(msg); err != nil {
			log.Printf("[API] write error: %v", err)
			c.close()
			s.removeClient(c)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[API] upgrade:", err)
		return
	}

	c := &wsClient{conn: conn}
	s.addClient(c)
	defer func() {
		s.removeClient(c)
		c.close()
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Println("[API] read:", err)
			}
			return
		}
		if err := c.send(s.processMessage(msg)); err != nil {
			log.Println("[API] write:", err)
			return
		}
	}
}

// processMessage выполняет запрос и возвращает ответ того же типа
// (или type=error)
func (s *Server) processMessage(msg Message) Message {
	if msg.RequestID == "" {
		msg.RequestID = uuid.NewString()
	}
	reply := Message{Type: msg.Type, RequestID: msg.RequestID}

	fail := func(err error) Message {
		return Message{Type: TypeError, RequestID: msg.RequestID, Data: msg.Type, Error: err.Error()}
	}

	switch msg.Type {
	case TypeEncode:
		z, err := s.Latent.Encode(msg.Waveform)
		if err != nil {
			return fail(err)
		}
		reply.Latent = z

	case TypeDecode:
		x, err := s.Latent.Decode(msg.Latent)
		if err != nil {
			return fail(err)
		}
		reply.Waveform = x

	case TypeGenerate:
		out, err := s.Latent.Generate(msg.Count)
		if err != nil {
			return fail(err)
		}
		reply.Waveforms = out

	case TypeReconstruct:
		r, err := s.Latent.Reconstruct(msg.Waveform)
		if err != nil {
			return fail(err)
		}
		reply.Latent = r.Latent
		reply.Waveform = r.Waveform
		reply.MSE = r.MSE

	case TypeOrderTemplates:
		reply.Groups = templates.OrderTemplates(msg.Templates, msg.Labels)

	case TypeEncodeTemplates:
		groups, err := s.Latent.GroupAndEncode(msg.Templates, msg.Labels, msg.Batched)
		if err != nil {
			return fail(err)
		}
		reply.Groups = groups

	case TypeBuildPrototypes:
		saved, err := s.Latent.BuildPrototypes(msg.Templates, msg.Labels, msg.Source)
		if err != nil {
			return fail(err)
		}
		reply.Prototypes = saved

	case TypeGetPrototypes:
		if s.Latent.Store() == nil {
			return fail(errors.New("prototype store not configured"))
		}
		reply.Prototypes = s.Latent.Store().GetAll()

	case TypeDeletePrototype:
		if s.Latent.Store() == nil {
			return fail(errors.New("prototype store not configured"))
		}
		if err := s.Latent.Store().Delete(msg.Data); err != nil {
			return fail(err)
		}

	case TypeClassify:
		match, z, err := s.Latent.Classify(msg.Waveform)
		if err != nil {
			return fail(err)
		}
		reply.Latent = z
		reply.Match = match

	case TypeGetModels:
		if s.ModelMgr == nil {
			return fail(errors.New("model manager not configured"))
		}
		reply.Models = s.ModelMgr.GetAllModelsState()

	case TypeDownloadModel:
		if s.ModelMgr == nil {
			return fail(errors.New("model manager not configured"))
		}
		if err := s.ModelMgr.DownloadModel(models.ModelID(msg.ModelID)); err != nil {
			return fail(err)
		}
		reply.ModelID = msg.ModelID
		reply.Data = string(models.ModelStatusDownloading)

	default:
		return fail(errors.New("unknown message type"))
	}

	return reply
}

func (s *Server) handleModelsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ModelMgr == nil {
		http.Error(w, "model manager not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.ModelMgr.GetAllModelsState())
}

func (s *Server) handlePrototypesAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Latent.Store() == nil {
		http.Error(w, "prototype store not configured", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.Latent.Store().GetAll())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}
