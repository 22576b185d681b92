package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/coauthor/internal/handler"
	"github.com/xxxsen/coauthor/internal/metrics"
	"github.com/xxxsen/coauthor/internal/middleware"
	"github.com/xxxsen/coauthor/internal/model"
	"github.com/xxxsen/coauthor/internal/pkg/jwt"
	"github.com/xxxsen/coauthor/internal/repo/memory"
	"github.com/xxxsen/coauthor/internal/service"
)

var jwtSecret = []byte("test-secret")

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	tokens  map[string]string
	users   map[string]*model.User
}

func setupRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	srv := &testServer{t: t, tokens: map[string]string{}, users: map[string]*model.User{}}
	for _, name := range []string{"alice", "bob", "carol"} {
		user, err := store.AddUser(model.User{Username: name, Email: name + "@example.com"})
		require.NoError(t, err)
		token, err := jwt.GenerateToken(user.ID, user.Username, jwtSecret, time.Hour)
		require.NoError(t, err)
		srv.users[name] = user
		srv.tokens[name] = token
	}

	versions := service.NewVersionStore(store, store)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	collaboration := service.NewCollaborationService(store, store, store, nil, collector)
	articles := service.NewArticleService(versions, collaboration, store, nil, collector)

	deps := handler.RouterDeps{
		Articles:      handler.NewArticleHandler(articles),
		Versions:      handler.NewVersionHandler(articles),
		Collaborators: handler.NewCollaboratorHandler(collaboration),
		JWTSecret:     jwtSecret,
		Metrics:       metrics.Handler(registry),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
		),
	)
	require.NoError(t, err)
	srv.handler = engine
	return srv
}

func (s *testServer) do(user, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token, ok := s.tokens[user]; ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}
