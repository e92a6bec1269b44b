package main

import (
	"database/sql"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/mux"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/joho/godotenv"

	"forum/pkg/graph"
	"forum/pkg/logger"
	"forum/pkg/mailer"
	"forum/pkg/middleware"
	"forum/pkg/post"
	"forum/pkg/sessions"
	"forum/pkg/user"
	"forum/pkg/vote"
)

type EnvConfig map[string]string

func init() {
	rand.Seed(time.Now().UnixNano())
}

func main() {
	var cfg EnvConfig = readDotenv()

	seedFlag := flag.Bool("seed", false, "fill the database with fake content and exit")
	flag.Parse()

	zapLogger := logger.Run(cfg["LOG_LEVEL"])
	defer zapLogger.Sync()

	db, err := sql.Open("pgx", cfg["POSTGRES_DSN"])
	if err != nil {
		log.Fatalf("main: unable to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("main: unable to reach PostgreSQL: %v", err)
	}

	usersRepo := user.NewUserRepo(db)
	postsRepo := post.NewPostRepo(db)
	votesRepo := vote.NewVoteRepo(db)

	if *seedFlag {
		seed(usersRepo, postsRepo, votesRepo)
		return
	}

	redisConn, err := redis.DialURL(cfg["REDIS_ADDR"])
	if err != nil {
		log.Fatalf("main: can't connect to Redis: %v", err)
	}
	defer redisConn.Close()

	sessionManager := sessions.NewSessionManager(cfg["SECRET_KEY"], redisConn)
	mail := mailer.New(mailer.Config{
		Host:     cfg["SMTP_HOST"],
		Port:     cfg["SMTP_PORT"],
		Username: cfg["SMTP_USER"],
		Password: cfg["SMTP_PASS"],
		From:     cfg["SMTP_FROM"],
	})

	resolver := &graph.Resolver{
		Users:        usersRepo,
		Posts:        postsRepo,
		Votes:        votesRepo,
		Sessions:     sessionManager,
		Mailer:       mail,
		ResetURLBase: cfg["RESET_URL_BASE"],
	}
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		log.Fatalf("main: can't build GraphQL schema: %v", err)
	}
	gqlHandler := graph.NewHandler(schema, usersRepo, votesRepo)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/graphql", gqlHandler).Methods("POST", "OPTIONS")

	logMiddleware := middleware.NewLoggingMiddleware(zapLogger)
	r.Use(logMiddleware.SetupTracing, logMiddleware.SetupLogging, logMiddleware.AccessLog)
	r.Use(corsMiddleware(cfg["CORS_ORIGIN"]))

	auth := middleware.NewAuthMiddleware(sessionManager, usersRepo)
	r.Use(auth.Middleware)

	addr := cfg["HTTP_ADDR"]
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("Serving at http://localhost%s/", addr)
	log.Fatalln(http.ListenAndServe(addr, r))
}

func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func readDotenv() EnvConfig {
	env, err := godotenv.Read()
	if err != nil {
		log.Fatal("failed reading .env file:", err)
	}
	return env
}
