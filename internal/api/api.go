// ABOUTME: HTTP API surface: auth, message operations, and session control routes
// ABOUTME: Thin JSON layer over the gateway facade and auth service

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/warelay/internal/auth"
	"github.com/2389/warelay/internal/config"
	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/gateway"
	"github.com/2389/warelay/internal/hub"
	"github.com/2389/warelay/internal/store"
)

// Server holds the API's collaborators and builds the route table.
type Server struct {
	cfg      *config.Config
	gw       *gateway.Gateway
	accounts *auth.Service
	verifier auth.Verifier
	ws       *hub.WebsocketHandler
	logger   *slog.Logger
}

// NewServer creates the API server. Pass nil logger for default.
func NewServer(cfg *config.Config, gw *gateway.Gateway, accounts *auth.Service, verifier auth.Verifier, ws *hub.WebsocketHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		gw:       gw,
		accounts: accounts,
		verifier: verifier,
		ws:       ws,
		logger:   logger.With("component", "api"),
	}
}

// Routes builds the full route table, wrapping protected routes with the
// bearer-token middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	authed := auth.Middleware(s.verifier)

	// Open endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)

	// Realtime endpoint authenticates its own handshake
	mux.Handle("GET /ws", s.ws)

	// Protected endpoints
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/auth/me", s.handleMe)
	protected.HandleFunc("GET /api/auth/users", s.handleListUsers)
	protected.HandleFunc("POST /api/messages/send", s.handleSendText)
	protected.HandleFunc("POST /api/messages/send-media", s.handleSendMedia)
	protected.HandleFunc("GET /api/messages/chat/{chatID}", s.handleHistory)
	protected.HandleFunc("GET /api/messages/search", s.handleSearch)
	protected.HandleFunc("PUT /api/messages/read/{chatID}", s.handleMarkRead)
	protected.HandleFunc("GET /api/messages/stats", s.handleStats)
	protected.HandleFunc("GET /api/messages/chats", s.handleActiveChats)
	protected.HandleFunc("GET /api/whatsapp/status", s.handleStatus)
	protected.HandleFunc("GET /api/whatsapp/qr", s.handleQR)
	protected.HandleFunc("POST /api/whatsapp/restart", s.handleRestart)
	protected.HandleFunc("POST /api/whatsapp/disconnect", s.handleDisconnect)
	protected.HandleFunc("GET /api/whatsapp/chats", s.handleChats)
	protected.HandleFunc("GET /api/whatsapp/contacts", s.handleContacts)
	protected.HandleFunc("GET /api/whatsapp/info", s.handleInfo)

	mux.Handle("/api/", authed(protected))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fault.Wrap(fault.InvalidArgument, err, "malformed request body"))
		return
	}

	token, account, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  account,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fault.Wrap(fault.InvalidArgument, err, "malformed request body"))
		return
	}

	token, account, err := s.accounts.Register(r.Context(), req.Username, req.Password, req.Name, req.Role)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  account,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, auth.FromContext(r.Context()))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.ListAccounts(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"users": accounts,
		"total": len(accounts),
	})
}

type sendTextRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *Server) handleSendText(w http.ResponseWriter, r *http.Request) {
	var req sendTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, fault.Wrap(fault.InvalidArgument, err, "malformed request body"))
		return
	}

	msg, err := s.gw.SendText(r.Context(), req.To, req.Message)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, msg)
}

// handleSendMedia accepts a multipart upload, spools the file to the
// upload directory, sends it, and removes the spool file afterwards.
func (s *Server) handleSendMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize); err != nil {
		respondError(w, fault.Wrap(fault.InvalidArgument, err, "parsing upload"))
		return
	}

	to := r.FormValue("to")
	caption := r.FormValue("caption")
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, fault.Wrap(fault.InvalidArgument, err, "file field is required"))
		return
	}
	defer file.Close()

	spoolPath, err := s.spoolUpload(file, header.Filename)
	if err != nil {
		respondError(w, err)
		return
	}
	defer os.Remove(spoolPath)

	msg, err := s.gw.SendAttachment(r.Context(), to, spoolPath, caption)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, msg)
}

// spoolUpload writes the uploaded file into the configured upload
// directory under a unique name.
func (s *Server) spoolUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(s.cfg.Upload.Directory, 0755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	name := fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(originalName))
	path := filepath.Join(s.cfg.Upload.Directory, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing spool file: %w", err)
	}
	return path, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatID")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	messages, err := s.gw.History(chatID, limit, offset)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    len(messages),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	chatID := r.URL.Query().Get("chatId")
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	messages, err := s.gw.Search(query, chatID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"messages": messages,
		"query":    query,
		"total":    len(messages),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	count, err := s.gw.MarkRead(r.PathValue("chatID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"markedCount": count})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chatId")
	period := store.Period(r.URL.Query().Get("period"))

	stats, err := s.gw.Stats(chatID, period)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

func (s *Server) handleActiveChats(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, err)
		return
	}

	chats, err := s.gw.ActiveChats(limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"chats": chats,
		"total": len(chats),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.gw.Status())
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	challenge, err := s.gw.Challenge()
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"qrCode": challenge})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	snap, err := s.gw.Restart(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, snap)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.gw.Teardown(r.Context()))
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.gw.Chats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, chats)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.gw.Contacts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, contacts)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.gw.Info(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, info)
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fault.Newf(fault.InvalidArgument, "%s must be an integer", name)
	}
	return v, nil
}
