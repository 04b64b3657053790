package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialHub 起一个升级并注册到 hub 的测试服务端，返回客户端连接
func dialHub(t *testing.T, hub *Hub, companyID, userID string) (*websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	registered := make(chan struct{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(companyID, userID, conn)
		registered <- struct{}{}
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("连接注册超时")
	}
	return client, func() {
		client.Close()
		srv.Close()
	}
}

func TestHub_SendToUserDelivers(t *testing.T) {
	hub := NewHub(WithKeepAliveInterval(0))
	client, cleanup := dialHub(t, hub, "company-a", "user-1")
	defer cleanup()

	require.True(t, hub.IsConnected("company-a", "user-1"))

	payload := &Notification{ID: "n-1", Content: "测试推送"}
	require.NoError(t, hub.SendToUser("company-a", "user-1", payload))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var got Notification
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "n-1", got.ID)
	require.Equal(t, "测试推送", got.Content)
}

func TestHub_OfflineUserSilentlyDropped(t *testing.T) {
	hub := NewHub(WithKeepAliveInterval(0))

	// 不在线不算错误，未读列表以数据库为准
	require.NoError(t, hub.SendToUser("company-a", "ghost", &Notification{ID: "n-1"}))
	require.False(t, hub.IsConnected("company-a", "ghost"))
}

func TestHub_NewConnectionDisplacesOld(t *testing.T) {
	hub := NewHub(WithKeepAliveInterval(0))

	first, cleanupFirst := dialHub(t, hub, "company-a", "user-1")
	defer cleanupFirst()
	second, cleanupSecond := dialHub(t, hub, "company-a", "user-1")
	defer cleanupSecond()

	// 旧连接被顶替关闭
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	require.Error(t, err)

	// 推送只到新连接
	require.NoError(t, hub.SendToUser("company-a", "user-1", &Notification{ID: "n-2"}))
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)

	var got Notification
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, "n-2", got.ID)
	require.True(t, hub.IsConnected("company-a", "user-1"))
}

func TestHub_UnregisterOnlyCurrentConnection(t *testing.T) {
	hub := NewHub(WithKeepAliveInterval(0))

	first, cleanupFirst := dialHub(t, hub, "company-a", "user-1")
	defer cleanupFirst()

	// 记住旧连接的服务端句柄，再建立新连接顶替
	oldConn := hub.clients["company-a"]["user-1"].conn
	_, cleanupSecond := dialHub(t, hub, "company-a", "user-1")
	defer cleanupSecond()
	_ = first

	// 旧连接的退出回调不应摘掉新连接
	hub.Unregister("company-a", "user-1", oldConn)
	require.True(t, hub.IsConnected("company-a", "user-1"))
}
