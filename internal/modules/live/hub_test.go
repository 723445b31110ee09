package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"parking/internal/domain"
	"parking/internal/modules/reservation"
	"parking/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*Hub, *jwt.Service, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	jwtService := jwt.New("live-test-secret", time.Hour)
	r := gin.New()
	NewHandler(hub, jwtService).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, jwtService, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/reservations?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) reservation.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var e reservation.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHub_StaffSeesEveryEventUsersSeeTheirOwn(t *testing.T) {
	hub, jwtService, srv := setupServer(t)

	staffToken, err := jwtService.GenerateToken(1, string(domain.RoleSecretary))
	require.NoError(t, err)
	userToken, err := jwtService.GenerateToken(7, string(domain.RoleEmployee))
	require.NoError(t, err)

	staff := dial(t, srv, staffToken)
	user := dial(t, srv, userToken)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	other := reservation.Event{Type: reservation.EventCreated, ReservationID: uuid.New(), UserID: 99, SpotID: 3}
	own := reservation.Event{Type: reservation.EventCancelled, ReservationID: uuid.New(), UserID: 7, SpotID: 4}
	hub.Publish(other)
	hub.Publish(own)

	assert.Equal(t, other.ReservationID, readEvent(t, staff).ReservationID)
	assert.Equal(t, own.ReservationID, readEvent(t, staff).ReservationID)

	got := readEvent(t, user)
	assert.Equal(t, own.ReservationID, got.ReservationID)
	assert.Equal(t, reservation.EventCancelled, got.Type)
}

func TestHandler_RejectsMissingOrInvalidToken(t *testing.T) {
	_, _, srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/ws/reservations")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/ws/reservations?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, jwtService, srv := setupServer(t)
	token, err := jwtService.GenerateToken(5, string(domain.RoleManager))
	require.NoError(t, err)

	conn := dial(t, srv, token)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DropsClientWithFullBuffer(t *testing.T) {
	hub := NewHub()
	slow := &connection{userID: 7, send: make(chan []byte, 1)}
	idle := &connection{userID: 8, send: make(chan []byte, 1)}
	hub.register(slow)
	hub.register(idle)

	e := reservation.Event{Type: reservation.EventCreated, ReservationID: uuid.New(), UserID: 7}
	hub.Publish(e)
	assert.Equal(t, 2, hub.Count())

	hub.Publish(e)
	assert.Equal(t, 1, hub.Count())

	_, ok := <-slow.send
	assert.True(t, ok, "buffered event is still delivered")
	_, ok = <-slow.send
	assert.False(t, ok, "send channel is closed")
	assert.Empty(t, idle.send)
}
