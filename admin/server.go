// Package admin serves the management JSON API: catalog CRUD, prompt
// and settings editing, lead profiles, and vector-index sync, behind
// cookie-session auth.
package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/ArthurBabkin/ai-sales/catalog"
	"github.com/ArthurBabkin/ai-sales/llm"
	"github.com/ArthurBabkin/ai-sales/session"
	"github.com/ArthurBabkin/ai-sales/vector"
)

const cookieTTL = time.Hour

type Config struct {
	Sessions *session.Manager
	Catalog  *catalog.Catalog
	Embedder llm.Embedder
	Index    vector.Index
	// EmbedModel names the embedding model used by sync-index.
	EmbedModel string
	// Namespace is the vector-index namespace holding item embeddings.
	Namespace string
	Logger    *slog.Logger
}

type Server struct {
	app *fiber.App
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		app: fiber.New(),
		cfg: cfg,
		log: cfg.Logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Post("/auth", s.handleAuth)

	api := s.app.Group("/api", s.requireAuth)
	api.Get("/items", s.handleListItems)
	api.Post("/items", s.handleAddItem)
	api.Put("/items/:id", s.handleUpdateItem)
	api.Delete("/items/:id", s.handleDeleteItem)
	api.Get("/intents", s.handleListIntents)
	api.Post("/intents", s.handleAddIntent)
	api.Put("/intents/:id", s.handleUpdateIntent)
	api.Delete("/intents/:id", s.handleDeleteIntent)
	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handleSetSettings)
	api.Get("/prompts", s.handleGetPrompts)
	api.Put("/prompts", s.handleSetPrompts)
	api.Get("/users", s.handleListUsers)
	api.Post("/sync-index", s.handleSyncIndex)
}

// App exposes the underlying fiber app for in-process testing.
func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.log.Info("admin panel listening", "addr", addr)
	return s.app.Listen(addr)
}

func errJSON(c fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAuth(c fiber.Ctx) error {
	var creds credentials
	if err := c.Bind().Body(&creds); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed credentials")
	}
	ok, err := s.cfg.Sessions.CheckAdmin(c.Context(), creds.Username, creds.Password)
	if err != nil {
		s.log.Error("admin lookup failed", "error", err)
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	if !ok {
		return errJSON(c, fiber.StatusUnauthorized, "invalid username or password")
	}
	sessionID, err := s.cfg.Sessions.Add(c.Context(), creds.Username)
	if err != nil {
		s.log.Error("session create failed", "error", err)
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	expires := time.Now().Add(cookieTTL)
	c.Cookie(&fiber.Cookie{Name: "username", Value: creds.Username, Expires: expires})
	c.Cookie(&fiber.Cookie{Name: "sessionId", Value: sessionID, Expires: expires})
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) requireAuth(c fiber.Ctx) error {
	username := c.Cookies("username")
	sessionID := c.Cookies("sessionId")
	if username == "" || sessionID == "" {
		return errJSON(c, fiber.StatusUnauthorized, "not authenticated")
	}
	ok, err := s.cfg.Sessions.Check(c.Context(), username, sessionID)
	if err != nil {
		s.log.Error("session check failed", "error", err)
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	if !ok {
		return errJSON(c, fiber.StatusUnauthorized, "not authenticated")
	}
	if err := s.cfg.Sessions.Extend(c.Context(), username, sessionID); err != nil {
		s.log.Warn("session extend failed", "error", err)
	}
	return c.Next()
}

func pathID(c fiber.Ctx) (int, error) {
	return strconv.Atoi(c.Params("id"))
}

func (s *Server) handleListItems(c fiber.Ctx) error {
	items, err := s.cfg.Catalog.Items(c.Context())
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(items)
}

func (s *Server) handleAddItem(c fiber.Ctx) error {
	var item catalog.Item
	if err := c.Bind().Body(&item); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed item")
	}
	if item.Name == "" {
		return errJSON(c, fiber.StatusBadRequest, "item name is required")
	}
	if item.Price < 0 {
		return errJSON(c, fiber.StatusBadRequest, "price must be non-negative")
	}
	added, err := s.cfg.Catalog.AddItem(c.Context(), item)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.Status(fiber.StatusCreated).JSON(added)
}

func (s *Server) handleUpdateItem(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, "invalid id")
	}
	var item catalog.Item
	if err := c.Bind().Body(&item); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed item")
	}
	if item.Name == "" {
		return errJSON(c, fiber.StatusBadRequest, "item name is required")
	}
	if item.Price < 0 {
		return errJSON(c, fiber.StatusBadRequest, "price must be non-negative")
	}
	item.ID = id
	if err := s.cfg.Catalog.UpdateItem(c.Context(), item); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errJSON(c, fiber.StatusNotFound, fmt.Sprintf("item %d not found", id))
		}
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(item)
}

func (s *Server) handleDeleteItem(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, "invalid id")
	}
	if err := s.cfg.Catalog.DeleteItem(c.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errJSON(c, fiber.StatusNotFound, fmt.Sprintf("item %d not found", id))
		}
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleListIntents(c fiber.Ctx) error {
	intents, err := s.cfg.Catalog.Intents(c.Context())
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(intents)
}

func (s *Server) handleAddIntent(c fiber.Ctx) error {
	var intent catalog.Intent
	if err := c.Bind().Body(&intent); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed intent")
	}
	if intent.Name == "" {
		return errJSON(c, fiber.StatusBadRequest, "intent name is required")
	}
	added, err := s.cfg.Catalog.AddIntent(c.Context(), intent)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.Status(fiber.StatusCreated).JSON(added)
}

func (s *Server) handleUpdateIntent(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, "invalid id")
	}
	var intent catalog.Intent
	if err := c.Bind().Body(&intent); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed intent")
	}
	if intent.Name == "" {
		return errJSON(c, fiber.StatusBadRequest, "intent name is required")
	}
	intent.ID = id
	if err := s.cfg.Catalog.UpdateIntent(c.Context(), intent); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errJSON(c, fiber.StatusNotFound, fmt.Sprintf("intent %d not found", id))
		}
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(intent)
}

func (s *Server) handleDeleteIntent(c fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return errJSON(c, fiber.StatusBadRequest, "invalid id")
	}
	if err := s.cfg.Catalog.DeleteIntent(c.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return errJSON(c, fiber.StatusNotFound, fmt.Sprintf("intent %d not found", id))
		}
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleGetSettings(c fiber.Ctx) error {
	settings, err := s.cfg.Catalog.Settings(c.Context())
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(settings)
}

func (s *Server) handleSetSettings(c fiber.Ctx) error {
	var settings catalog.Settings
	if err := c.Bind().Body(&settings); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed settings")
	}
	switch {
	case settings.ResponseDelay < 0:
		return errJSON(c, fiber.StatusBadRequest, "responseDelay must be non-negative")
	case settings.ReminderActivationTime < 0:
		return errJSON(c, fiber.StatusBadRequest, "reminderActivationTime must be non-negative")
	case settings.TopKItems < 0:
		return errJSON(c, fiber.StatusBadRequest, "topKItems must be non-negative")
	case settings.Threshold < 0 || settings.Threshold > 1:
		return errJSON(c, fiber.StatusBadRequest, "threshold must be between 0 and 1")
	}
	if err := s.cfg.Catalog.SetSettings(c.Context(), settings); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(settings)
}

type prompts struct {
	System     string `json:"system"`
	Classifier string `json:"classifier"`
	Reminder   string `json:"reminder"`
}

func (s *Server) handleGetPrompts(c fiber.Ctx) error {
	var p prompts
	var err error
	if p.System, err = s.cfg.Catalog.SystemPrompt(c.Context()); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	if p.Classifier, err = s.cfg.Catalog.ClassifierPrompt(c.Context()); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	if p.Reminder, err = s.cfg.Catalog.ReminderPrompt(c.Context()); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(p)
}

func (s *Server) handleSetPrompts(c fiber.Ctx) error {
	var p prompts
	if err := c.Bind().Body(&p); err != nil {
		return errJSON(c, fiber.StatusBadRequest, "malformed prompts")
	}
	if err := s.cfg.Catalog.SetSystemPrompt(c.Context(), p.System); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	if err := s.cfg.Catalog.SetClassifierPrompt(c.Context(), p.Classifier); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	if err := s.cfg.Catalog.SetReminderPrompt(c.Context(), p.Reminder); err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(p)
}

func (s *Server) handleListUsers(c fiber.Ctx) error {
	profiles, err := s.cfg.Catalog.Profiles(c.Context())
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	return c.JSON(profiles)
}

// handleSyncIndex rebuilds the vector namespace from the current item
// catalog: every item is re-embedded and the old namespace contents
// are replaced wholesale.
func (s *Server) handleSyncIndex(c fiber.Ctx) error {
	ctx := c.Context()
	items, err := s.cfg.Catalog.Items(ctx)
	if err != nil {
		return errJSON(c, fiber.StatusInternalServerError, "internal error")
	}
	vectors := make([]vector.Vector, 0, len(items))
	for _, item := range items {
		values, err := s.cfg.Embedder.Embed(ctx, s.cfg.EmbedModel, item.Name+": "+item.Description)
		if err != nil {
			s.log.Error("embed item failed", "item", item.ID, "error", err)
			return errJSON(c, fiber.StatusBadGateway, "embedding failed")
		}
		vectors = append(vectors, vector.Vector{
			ID:     strconv.Itoa(item.ID),
			Values: values,
			Metadata: map[string]string{
				"name":        item.Name,
				"description": item.Description,
			},
		})
	}
	if err := s.cfg.Index.DeleteAll(ctx, s.cfg.Namespace); err != nil {
		s.log.Error("clear namespace failed", "error", err)
		return errJSON(c, fiber.StatusBadGateway, "index update failed")
	}
	if len(vectors) > 0 {
		if err := s.cfg.Index.Upsert(ctx, s.cfg.Namespace, vectors); err != nil {
			s.log.Error("upsert vectors failed", "error", err)
			return errJSON(c, fiber.StatusBadGateway, "index update failed")
		}
	}
	s.log.Info("vector index synced", "items", len(vectors))
	return c.JSON(fiber.Map{"status": "ok", "synced": len(vectors)})
}
