package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fdg312/nutrition-planner/internal/ai"
	"github.com/fdg312/nutrition-planner/internal/auth"
	"github.com/fdg312/nutrition-planner/internal/blob"
	"github.com/fdg312/nutrition-planner/internal/chat"
	"github.com/fdg312/nutrition-planner/internal/config"
	"github.com/fdg312/nutrition-planner/internal/exercises"
	"github.com/fdg312/nutrition-planner/internal/items"
	"github.com/fdg312/nutrition-planner/internal/mealplans"
	"github.com/fdg312/nutrition-planner/internal/meals"
	"github.com/fdg312/nutrition-planner/internal/reports"
	"github.com/fdg312/nutrition-planner/internal/storage"
	"github.com/fdg312/nutrition-planner/internal/storage/memory"
	"github.com/fdg312/nutrition-planner/internal/storage/postgres"
	"github.com/fdg312/nutrition-planner/internal/users"
)

// Storage — набор хранилищ, который отдают memory и postgres реализации
type Storage interface {
	GetUsersStorage() storage.UsersStorage
	GetItemsStorage() storage.ItemsStorage
	GetMealsStorage() storage.MealsStorage
	GetMealPlansStorage() storage.MealPlansStorage
	GetExercisesStorage() storage.ExercisesStorage
	GetChatStorage() storage.ChatStorage
	GetReportsStorage() storage.ReportsStorage
	Close() error
}

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	mux            *http.ServeMux
	storage        Storage
	authMiddleware *auth.Middleware
	idempotency    *IdempotencyStore
	rateLimiter    *RateLimiter
	httpServer     *http.Server
}

// New создаёт новый HTTP сервер
func New(cfg *config.Config) *Server {
	s := &Server{
		config:      cfg,
		mux:         http.NewServeMux(),
		idempotency: NewIdempotencyStore(cfg.IdempotencyTTL),
		rateLimiter: NewRateLimiter(cfg),
	}

	// Инициализируем storage
	s.initStorage()

	// Регистрируем маршруты
	s.routes()
	return s
}

// NewWithStorage создаёт сервер поверх готового storage (тесты, smoke)
func NewWithStorage(cfg *config.Config, st Storage) *Server {
	s := &Server{
		config:      cfg,
		mux:         http.NewServeMux(),
		storage:     st,
		idempotency: NewIdempotencyStore(cfg.IdempotencyTTL),
		rateLimiter: NewRateLimiter(cfg),
	}
	s.routes()
	return s
}

// initStorage инициализирует storage (Memory или Postgres)
func (s *Server) initStorage() {
	if s.config.DatabaseURL == "" {
		log.Println("INFO storage: using in-memory storage")
		s.storage = memory.New()
		return
	}

	log.Println("INFO storage: connecting to PostgreSQL...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pgStorage, err := postgres.New(ctx, s.config.DatabaseURL)
	if err != nil {
		log.Printf("WARN storage: postgres unavailable: %v", err)
		log.Println("WARN storage: fallback to in-memory storage")
		s.storage = memory.New()
		return
	}

	log.Println("INFO storage: PostgreSQL connected")
	s.storage = pgStorage
}

// routes регистрирует маршруты
func (s *Server) routes() {
	// Health check (no auth required)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Auth API (no auth required)
	authService := auth.NewService(s.config, s.storage.GetUsersStorage())
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)

	s.mux.HandleFunc("POST /v1/auth/signup", authHandler.HandleSignUp)
	s.mux.HandleFunc("POST /v1/auth/signin", authHandler.HandleSignIn)
	s.mux.HandleFunc("POST /v1/auth/signout", authHandler.HandleSignOut)

	// POST /v1/auth/dev - local dev token (AUTH_MODE=dev)
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	// Me API
	usersHandler := users.NewHandler(users.NewService(s.storage.GetUsersStorage()))
	s.mux.HandleFunc("GET /v1/me", usersHandler.HandleGetMe)
	s.mux.HandleFunc("PATCH /v1/me", usersHandler.HandleUpdateMe)

	// Items API
	itemsStorage := s.storage.GetItemsStorage()
	itemsHandler := items.NewHandler(items.NewService(itemsStorage, s.config.SearchDefaultLimit, s.config.SearchMaxLimit))

	s.mux.HandleFunc("POST /v1/items", itemsHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/items", itemsHandler.HandleSearch)
	s.mux.HandleFunc("GET /v1/items/{id}", itemsHandler.HandleGet)

	// Meals API
	mealsStorage := s.storage.GetMealsStorage()
	mealsHandler := meals.NewHandler(meals.NewService(mealsStorage, itemsStorage, s.config.SearchDefaultLimit, s.config.SearchMaxLimit))

	s.mux.HandleFunc("POST /v1/meals", mealsHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/meals", mealsHandler.HandleSearch)
	s.mux.HandleFunc("GET /v1/meals/{id}", mealsHandler.HandleGet)

	// GET /v1/meals/{id}/nutrients?portions= - aggregated nutrients
	s.mux.HandleFunc("GET /v1/meals/{id}/nutrients", mealsHandler.HandleNutrients)

	// Meal Plans API
	mealPlansService := mealplans.NewService(s.storage.GetMealPlansStorage(), mealsStorage, itemsStorage, s.config.WeekStartsOn)
	mealPlansHandler := mealplans.NewHandler(mealPlansService)

	s.mux.HandleFunc("POST /v1/meal-plans", mealPlansHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/meal-plans", mealPlansHandler.HandleList)
	s.mux.HandleFunc("DELETE /v1/meal-plans/{id}", mealPlansHandler.HandleDelete)

	// GET /v1/meal-plans/week?date= - weekly 7x4 grid
	s.mux.HandleFunc("GET /v1/meal-plans/week", mealPlansHandler.HandleWeek)

	// Exercises API
	exercisesHandler := exercises.NewHandler(exercises.NewService(s.storage.GetExercisesStorage(), s.config.WeekStartsOn))

	s.mux.HandleFunc("POST /v1/exercises", exercisesHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/exercises", exercisesHandler.HandleList)
	s.mux.HandleFunc("PUT /v1/exercises/{id}", exercisesHandler.HandleUpdate)
	s.mux.HandleFunc("DELETE /v1/exercises/{id}", exercisesHandler.HandleDelete)
	s.mux.HandleFunc("GET /v1/exercises/week", exercisesHandler.HandleWeek)
	s.mux.HandleFunc("PUT /v1/exercises/{id}/completions/{date}", exercisesHandler.HandleMarkDone)
	s.mux.HandleFunc("DELETE /v1/exercises/{id}/completions/{date}", exercisesHandler.HandleUnmark)

	// Chat API
	aiProvider := ai.NewProvider(context.Background(), s.config)
	chatService := chat.NewService(s.storage.GetChatStorage(), mealPlansService, aiProvider)
	chatHandler := chat.NewHandler(chatService)
	s.mux.HandleFunc("GET /v1/chat/messages", chatHandler.HandleListMessages)
	s.mux.HandleFunc("POST /v1/chat/messages", chatHandler.HandleSendMessage)

	// Reports API
	reportsService := reports.NewService(
		s.storage.GetReportsStorage(),
		mealPlansService,
		s.initBlobStore(),
		reports.Options{
			MaxPerUser:      s.config.ReportsMaxPerUser,
			PresignTTL:      time.Duration(s.config.Blob.S3.PresignTTLSeconds) * time.Second,
			PublicBaseURL:   s.config.Blob.S3.PublicBaseURL,
			PreferPublicURL: s.config.Blob.S3.PreferPublicURL,
		},
	)
	reportsHandler := reports.NewHandlers(reportsService)

	s.mux.HandleFunc("POST /v1/reports", reportsHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/reports", reportsHandler.HandleList)
	s.mux.HandleFunc("GET /v1/reports/{id}/download", reportsHandler.HandleDownload)
	s.mux.HandleFunc("DELETE /v1/reports/{id}", reportsHandler.HandleDelete)
}

// initBlobStore initializes the report blob store from BLOB_MODE.
func (s *Server) initBlobStore() blob.Store {
	log.Printf("INFO blob: initializing store (BLOB_MODE=%s)", s.config.Blob.Mode)
	store, mode, err := blob.NewBlobStore(context.Background(), s.config.Blob, log.Default())
	if err != nil {
		log.Fatalf("FATAL blob: failed to initialize store: %v", err)
	}
	log.Printf("INFO blob: mode=%s", mode)
	return store
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Handler returns the router wrapped in the middleware chain
// (outermost first): CORS, Auth, Rate Limit, Idempotency, Router.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	handler = IdempotencyMiddleware(s.idempotency, handler)
	// лимит после auth: бакет считается по пользователю
	handler = s.rateLimiter.Wrap(handler)
	handler = s.authMiddleware.Wrap(handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Сервер запущен на http://localhost%s\n", addr)
	log.Printf("Health check: http://localhost%s/healthz\n", addr)
	log.Printf("Week view: http://localhost%s/v1/meal-plans/week\n", addr)

	return s.httpServer.ListenAndServe()
}

// Shutdown дожидается активных запросов и останавливает сервер
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
