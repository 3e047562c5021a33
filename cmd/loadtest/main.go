package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	baseURL   string
	users     int
	messages  int
	interval  time.Duration
	adminUser string
	adminPass string
	password  string
}

type tester struct {
	opts     options
	log      *zap.SugaredLogger
	client   *http.Client
	admin    string
	roomID   int64
	sent     atomic.Int64
	received atomic.Int64
	failures atomic.Int64
}

func main() {
	var o options
	fs := pflag.NewFlagSet("loadtest", pflag.ExitOnError)
	fs.StringVar(&o.baseURL, "url", "http://localhost:8080", "server base URL")
	fs.IntVar(&o.users, "users", 100, "concurrent chat users")
	fs.IntVar(&o.messages, "messages", 20, "messages per user")
	fs.DurationVar(&o.interval, "interval", 10*time.Millisecond, "pause between messages of one user")
	fs.StringVar(&o.adminUser, "admin-user", "admin", "admin login used to approve test users")
	fs.StringVar(&o.adminPass, "admin-pass", "", "admin password")
	fs.StringVar(&o.password, "password", "password123", "password of the generated users")
	_ = fs.Parse(os.Args[1:])

	base, _ := zap.NewDevelopment()
	defer base.Sync()
	log := base.Sugar()

	t := &tester{opts: o, log: log, client: &http.Client{Timeout: 10 * time.Second}}
	if err := t.setup(); err != nil {
		log.Fatalf("❌ setup failed: %v", err)
	}

	log.Infof("🔥 STARTING STRESS TEST: %d users, %d messages each, room %d", o.users, o.messages, t.roomID)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < o.users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			t.runUser(i)
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(start)
	log.Infof("✅ LOAD TEST COMPLETE in %s: sent=%d received=%d failures=%d (%.0f msg/s)",
		elapsed.Round(time.Millisecond), t.sent.Load(), t.received.Load(), t.failures.Load(),
		float64(t.sent.Load())/elapsed.Seconds())
}

// setup logs in as admin and creates the room every test user talks in.
func (t *tester) setup() error {
	token, err := t.login(t.opts.adminUser, t.opts.adminPass)
	if err != nil {
		return fmt.Errorf("admin login: %w", err)
	}
	t.admin = token

	var room struct {
		ID int64 `json:"id"`
	}
	name := fmt.Sprintf("loadtest-%d", time.Now().Unix())
	if err := t.call(http.MethodPost, "/api/rooms", token, map[string]string{"name": name, "category": "general"}, &room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	t.roomID = room.ID
	return nil
}

func (t *tester) runUser(i int) {
	username := fmt.Sprintf("lt_%d", i)
	token, err := t.enroll(username)
	if err != nil {
		t.failures.Add(1)
		t.log.Warnf("❌ enroll %s: %v", username, err)
		return
	}
	if err := t.call(http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", t.roomID), token, nil, nil); err != nil {
		t.failures.Add(1)
		t.log.Warnf("❌ join %s: %v", username, err)
		return
	}
	t.spamChat(token, username)
}

// enroll registers the user (ignoring "already exists"), has the admin
// approve it and logs it in.
func (t *tester) enroll(username string) (string, error) {
	var reg struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}
	err := t.call(http.MethodPost, "/register", "", map[string]string{
		"username": username,
		"email":    username + "@loadtest.local",
		"password": t.opts.password,
	}, &reg)

	id := reg.User.ID
	if err != nil {
		if id, err = t.searchUserID(username); err != nil {
			return "", err
		}
	}
	if err := t.call(http.MethodPatch, fmt.Sprintf("/api/users/%d/approve", id), t.admin, nil, nil); err != nil {
		return "", fmt.Errorf("approve: %w", err)
	}
	return t.login(username, t.opts.password)
}

func (t *tester) searchUserID(username string) (int64, error) {
	var users []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := t.call(http.MethodGet, "/api/users/search?q="+url.QueryEscape(username), t.admin, nil, &users); err != nil {
		return 0, err
	}
	for _, u := range users {
		if u.Username == username {
			return u.ID, nil
		}
	}
	return 0, fmt.Errorf("user %s not found", username)
}

func (t *tester) login(username, password string) (string, error) {
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := t.call(http.MethodPost, "/login", "", map[string]string{"login": username, "password": password}, &res); err != nil {
		return "", err
	}
	return res.AccessToken, nil
}

func (t *tester) spamChat(token, username string) {
	wsURL := "ws" + strings.TrimPrefix(t.opts.baseURL, "http") + "/ws?token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.failures.Add(1)
		t.log.Warnf("❌ WS Connect Fail [%s]: %v", username, err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "join-room", "room_id": t.roomID, "limit": 1}); err != nil {
		t.failures.Add(1)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			switch ev.Type {
			case "new-message":
				t.received.Add(1)
			case "error":
				t.failures.Add(1)
			}
		}
	}()

	for i := 0; i < t.opts.messages; i++ {
		err := conn.WriteJSON(map[string]any{
			"type":    "send-message",
			"room_id": t.roomID,
			"content": fmt.Sprintf("LoadTest Msg %d from %s", i, username),
		})
		if err != nil {
			t.failures.Add(1)
			t.log.Warnf("❌ Send Fail [%s]: %v", username, err)
			break
		}
		t.sent.Add(1)
		time.Sleep(t.opts.interval)
	}

	// Give the fan-out of the last messages a moment to arrive.
	time.Sleep(time.Second)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	<-done
	t.log.Debugf("✅ %s finished sending %d msgs", username, t.opts.messages)
}

func (t *tester) call(method, path, token string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, t.opts.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
