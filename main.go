package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/matryer/way"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var origin *url.URL
var db *sql.DB
var cookieSigner *securecookie.SecureCookie
var sessionStore *SessionStore
var registry *Registry
var dispatcher *Dispatcher
var messages MessageStore
var protocol *protocolHandler
var analyzerURL string
var uploadDir string
var githubOAuthConfig oauth2.Config
var githubOAuthEnabled bool

func main() {
	godotenv.Load()

	port := intEnv("PORT", 8000)
	originString := env("ORIGIN", fmt.Sprintf("http://localhost:%d/", port))
	databaseURL := env("DATABASE_URL", "postgresql://root@127.0.0.1:5432/braintumor?sslmode=disable")
	analyzerURL = env("ANALYZER_URL", "http://localhost:8001/analyze")
	uploadDir = env("UPLOAD_DIR", "uploads")
	hashKey := env("HASH_KEY", "secret")
	githubClientID := os.Getenv("GITHUB_CLIENT_ID")
	githubClientSecret := os.Getenv("GITHUB_CLIENT_SECRET")

	var err error
	if origin, err = url.Parse(originString); err != nil || !origin.IsAbs() {
		log.Fatal("invalid origin")
		return
	}

	if i, err := strconv.Atoi(origin.Port()); err == nil {
		port = i
	}

	if db, err = sql.Open("postgres", databaseURL); err != nil {
		log.Fatalf("could not open database connection: %v\n", err)
		return
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		log.Fatalf("could not ping to db: %v\n", err)
		return
	}

	if err = os.MkdirAll(uploadDir, 0o755); err != nil {
		log.Fatalf("could not create upload directory: %v\n", err)
		return
	}

	cookieSigner = securecookie.New([]byte(hashKey), nil).MaxAge(0)
	sessionStore = NewSessionStore()
	registry = NewRegistry()
	dispatcher = NewDispatcher(sessionStore, registry)
	messages = &pgMessageStore{db: db}
	protocol = &protocolHandler{store: messages, dispatcher: dispatcher}

	if err = ensureSeedUsers(context.Background()); err != nil {
		log.Fatalf("could not seed default accounts: %v\n", err)
		return
	}

	if githubClientID != "" && githubClientSecret != "" {
		githubRedirectURL := *origin
		githubRedirectURL.Path = "/api/oauth/github/callback"
		githubOAuthConfig = oauth2.Config{
			ClientID:     githubClientID,
			ClientSecret: githubClientSecret,
			Endpoint:     github.Endpoint,
			RedirectURL:  githubRedirectURL.String(),
			Scopes:       []string{"read:user"},
		}
		githubOAuthEnabled = true
	}

	router := way.NewRouter()
	router.HandleFunc("POST", "/api/auth", requireJSON(login))
	router.HandleFunc("GET", "/api/auth", whoami)
	router.HandleFunc("DELETE", "/api/auth", logout)
	if githubOAuthEnabled {
		router.HandleFunc("GET", "/api/oauth/github", githubOAuthStart)
		router.HandleFunc("GET", "/api/oauth/github/callback", githubOAuthCallback)
	}
	router.HandleFunc("GET", "/api/usernames", requireRole(roleAdmin, roleUser)(searchUsernames))
	router.HandleFunc("GET", "/api/control/who", requireRole(roleAdmin, roleUser)(getWho))
	router.HandleFunc("GET", "/api/chat", requireRole(roleAdmin, roleUser)(getChatHistory))
	router.HandleFunc("POST", "/api/chat", requireRole(roleAdmin, roleUser)(createChatMessage))
	router.HandleFunc("POST", "/api/photo", analyzePhoto)
	router.HandleFunc("POST", "/api/photo/save", savePhoto)
	router.HandleFunc("GET", "/api/photo", getPhotos)
	router.HandleFunc("GET", "/ws", serveWS)
	router.HandleFunc("*", "/api/...", http.NotFound)
	router.Handle("GET", "/...", http.FileServer(SPAFileSystem{http.Dir("static")}))

	s := http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: time.Second * 5,
		IdleTimeout:       time.Second * 30,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			log.Fatalf("could not shutdown server: %v\n", err)
		}
	}()

	log.Printf("accepting connections on port %d\n", port)
	log.Printf("starting server at %s\n", origin.String())
	if err := s.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("could not start server: %v\n", err)
	}
}

func env(key, fallbackValue string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallbackValue
	}
	return v
}

func intEnv(key string, fallbackValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallbackValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallbackValue
	}
	return i
}
