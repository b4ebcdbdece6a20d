package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/itportfolio/apptrack/internal/config"
	"github.com/itportfolio/apptrack/internal/model"
	"github.com/itportfolio/apptrack/internal/repository"
	"github.com/itportfolio/apptrack/internal/utils"
)

var userCols = []string{"id", "full_name", "email", "password_hash", "avatar_url", "created_at", "updated_at"}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", AccessTTLMin: 0, BcryptCost: bcrypt.MinCost}
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAuthHandler(testConfig(), repository.NewUserRepo(db), nil), mock
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRegister(t *testing.T) {
	t.Run("missing fields", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register", `{"email":"jo@example.com"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", rec.Code)
		}
		if body := decodeBody(t, rec); body["success"] != false {
			t.Fatalf("got %v", body)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(errors.New("Error 1062 (23000): Duplicate entry"))

		rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register",
			`{"full_name":"Jo","email":"jo@example.com","password":"pw"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("got %d, want 409", rec.Code)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("success issues a token", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		now := time.Now()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnResult(sqlmock.NewResult(3, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=? LIMIT 1")).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(3, "Jo", "jo@example.com", "hash", model.DefaultAvatarURL, now, now))

		rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register",
			`{"full_name":"Jo","email":"jo@example.com","password":"pw"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("got %d, want 201: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		tok, _ := body["token"].(string)
		if tok == "" {
			t.Fatal("response carries no token")
		}
		uid, err := utils.ParseAccessToken("test-secret", tok)
		if err != nil || uid != 3 {
			t.Fatalf("token does not resolve to the new account: id=%d err=%v", uid, err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("right", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now()
	userRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(userCols).
			AddRow(7, "Jo", "jo@example.com", hash, model.DefaultAvatarURL, now, now)
	}

	t.Run("unknown email", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
			WithArgs("ghost@example.com").
			WillReturnRows(sqlmock.NewRows(userCols))

		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"ghost@example.com","password":"x"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("got %d, want 404", rec.Code)
		}
		if body := decodeBody(t, rec); body["message"] != "invalid credentials" {
			t.Fatalf("message must not reveal whether the email exists: %v", body)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
			WithArgs("jo@example.com").
			WillReturnRows(userRow())

		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"jo@example.com","password":"wrong"}`)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", rec.Code)
		}
		if body := decodeBody(t, rec); body["message"] != "invalid credentials" {
			t.Fatalf("got %v", body)
		}
	})

	t.Run("success", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=? LIMIT 1")).
			WithArgs("jo@example.com").
			WillReturnRows(userRow())

		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"jo@example.com","password":"right"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["success"] != true {
			t.Fatalf("got %v", body)
		}
		tok, _ := body["token"].(string)
		if uid, err := utils.ParseAccessToken("test-secret", tok); err != nil || uid != 7 {
			t.Fatalf("token does not resolve: id=%d err=%v", uid, err)
		}
		user, _ := body["user"].(map[string]interface{})
		if _, leaked := user["password_hash"]; leaked {
			t.Fatal("password hash leaked in response")
		}
	})
}

func TestMe(t *testing.T) {
	h, _ := newAuthHandler(t)
	e := echo.New()

	t.Run("with resolved identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set("user", &model.User{ID: 7, Email: "jo@example.com"})

		if err := h.Me(c); err != nil {
			t.Fatalf("Me: %v", err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d, want 200", rec.Code)
		}
	})

	t.Run("without identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		rec := httptest.NewRecorder()
		if err := h.Me(e.NewContext(req, rec)); err != nil {
			t.Fatalf("Me: %v", err)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("got %d, want 401", rec.Code)
		}
	})
}
