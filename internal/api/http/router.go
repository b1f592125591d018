package http

import (
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/parakh/adaptive-exam/internal/auth/middleware"
	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/rbac"
	"github.com/parakh/adaptive-exam/internal/users"
)

type Deps struct {
	Exams     Exams
	Questions exam.QuestionAdmin
	Auth      *auth.AuthService
	Users     auth.Authenticator
	// Accounts mounts registration and user administration when set.
	Accounts Accounts

	// RoleDB, when set, makes the users table authoritative for roles.
	RoleDB *sql.DB

	CORSOrigins []string
	// AccessLog turns on chi's request logger.
	AccessLog bool
	Log       *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))
	if d.Accounts != nil {
		r.Post("/auth/register", RegisterHandler(d.Accounts, log))
	}

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.RoleDB != nil {
			pr.Use(auth.AttachRoleFromDB(d.RoleDB, false))
		}

		owner := sessionOwner(d.Exams)

		pr.With(rbac.Require(rbac.PermExamTake)).
			Post("/exams", StartExamHandler(d.Exams, log))
		pr.With(rbac.RequireAny(rbac.PermExamTake, rbac.PermExamViewAll)).
			Get("/exams", ListExamsHandler(d.Exams, log))
		pr.With(rbac.RequireOwnerOr(rbac.PermExamViewAll, owner)).
			Get("/exams/{sessionID}", GetExamHandler(d.Exams, log))
		pr.With(rbac.Require(rbac.PermExamTake)).
			Post("/exams/{sessionID}/answers", SubmitAnswerHandler(d.Exams, log))
		pr.With(rbac.RequireOwnerOr(rbac.PermExamViewAll, owner)).
			Get("/exams/{sessionID}/report", ReportHandler(d.Exams, log))

		pr.With(rbac.Require(rbac.PermQuestionsImport)).
			Post("/questions/import", ImportQuestionsHandler(d.Questions, log))

		if d.Accounts != nil {
			pr.Post("/users/change-password", ChangePasswordHandler(d.Accounts, log))
			pr.Route("/admin/users", func(ar chi.Router) {
				ar.Use(rbac.Require(rbac.PermUsersManage))
				ar.Get("/", ListUsersHandler(d.Accounts, log))
				ar.Put("/{userID}/approve", AdminSetUserStatusHandler(d.Accounts, users.StatusApproved, log))
				ar.Put("/{userID}/reject", AdminSetUserStatusHandler(d.Accounts, users.StatusRejected, log))
				ar.Put("/{userID}/role", AdminUpdateUserRoleHandler(d.Accounts, log))
			})
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
