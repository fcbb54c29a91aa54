package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-portal/internal/dto"
	"github.com/noah-isme/student-portal/internal/screen"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

type readEvent struct {
	Screen string `json:"screen"`
	State  struct {
		Phase string `json:"phase"`
	} `json:"state"`
}

func TestWatchHandlerStreamsAcrossNavigation(t *testing.T) {
	f := newPortalFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()
	id := f.openOn(t, "main")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/screen/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	next := func() readEvent {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev readEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	}

	first := next()
	assert.Equal(t, "main", first.Screen)
	assert.Equal(t, "LOADED", first.State.Phase)

	_, err = f.portal.Navigate(context.Background(), id, "progress")
	require.NoError(t, err)
	for {
		ev := next()
		if ev.Screen == "progress" && ev.State.Phase == "LOADED" {
			break
		}
	}

	require.NoError(t, f.portal.CloseSession(context.Background(), id))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err = conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestWatchHandlerUnknownSession(t *testing.T) {
	f := newPortalFixture(t)
	w, env := f.do(t, http.MethodGet, "/api/v1/sessions/nope/screen/watch", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", env.Error.Code)
}

type watcherStub struct {
	events chan dto.ScreenEvent
}

func (w watcherStub) Watch(ctx context.Context, id string) (<-chan dto.ScreenEvent, func(), error) {
	if id != "s1" {
		return nil, nil, appErrors.ErrSessionNotFound
	}
	return w.events, func() {}, nil
}

func TestWatchHandlerRejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := watcherStub{events: make(chan dto.ScreenEvent, 1)}
	stub.events <- dto.ScreenEvent{Screen: "main", State: screen.Snapshot{Phase: screen.PhaseLoaded}}

	router := gin.New()
	router.GET("/watch/:id", NewWatchHandler(stub, []string{"https://portal.example"}, nil).Watch)
	srv := httptest.NewServer(router)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch/s1"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://portal.example"}})
	require.NoError(t, err)
	defer conn.Close()
	var ev readEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "main", ev.Screen)
}
