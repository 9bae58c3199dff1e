package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_QueuesWithoutConnection(t *testing.T) {
	h := NewHub(time.Hour)

	h.Push("s1", Success("Готово"))
	h.Push("s1", Error("Ошибка", "поле обязательно"))
	h.Push("s2", Info("другая сессия"))

	toasts := h.Drain("s1")
	require.Len(t, toasts, 2)
	assert.Equal(t, KindSuccess, toasts[0].Kind)
	assert.NotEmpty(t, toasts[0].ID)
	assert.Equal(t, []string{"поле обязательно"}, toasts[1].Details)

	assert.Empty(t, h.Drain("s1"))
	assert.Len(t, h.Drain("s2"), 1)
}

func TestHub_QueueIsBounded(t *testing.T) {
	h := NewHub(time.Hour)
	for i := 0; i < maxQueued+5; i++ {
		h.Push("s1", Info("x"))
	}
	assert.Len(t, h.Drain("s1"), maxQueued)
}

func TestHub_QueueExpires(t *testing.T) {
	h := NewHub(40 * time.Millisecond)
	defer h.Close()

	h.Push("gone", Info("вкладка не вернулась"))
	assert.Equal(t, 1, h.Queued())

	require.Eventually(t, func() bool { return h.Queued() == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, h.Drain("gone"))
}

func TestHub_DeliversOverWebSocket(t *testing.T) {
	h := NewHub(time.Hour)
	defer h.Close()

	// уведомление до подключения придет первым сообщением
	h.Push("s1", Info("в очереди"))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, "s1")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Toast {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var toast Toast
		require.NoError(t, json.Unmarshal(data, &toast))
		return toast
	}

	assert.Equal(t, "в очереди", read().Message)

	require.Eventually(t, func() bool { return h.Connected("s1") == 1 }, time.Second, 10*time.Millisecond)
	h.Push("s1", Success("Перемещено в корзину: 3"))
	assert.Equal(t, "Перемещено в корзину: 3", read().Message)
	assert.Empty(t, h.Drain("s1"))

	// отложенное уведомление ждет отрисовки страницы
	h.Queue("s1", Success("Альбом создан"))
	queued := h.Drain("s1")
	require.Len(t, queued, 1)
	assert.Equal(t, "Альбом создан", queued[0].Message)
}
