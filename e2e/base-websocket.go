package e2e

import (
	"chat-relay/domain/event"
	relay "chat-relay/infrastructure/websocket"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const readTimeout = 5 * time.Second

type BaseWebsocketSuite struct {
	suite.Suite
	Config   Config
	sessions int
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWebsocketSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.RelayAddr == "" {
		s.T().Skip("RELAY_ADDR not set")
	}
}

// Session is one websocket client of the relay.
type Session struct {
	s    *BaseWebsocketSuite
	name string
	conn *websocket.Conn
	SID  string
}

// Connect opens a session and waits for the first users_update to learn its sid.
func (s *BaseWebsocketSuite) Connect(name string) *Session {
	s.sessions++
	header := http.Header{}
	header.Set("X-Forwarded-For", fmt.Sprintf("%s%d", s.Config.ForwardedPrefix, s.sessions))

	conn, _, err := websocket.DefaultDialer.Dial(s.Config.RelayAddr, header)
	s.Require().NoError(err, "Failed to connect to relay at "+s.Config.RelayAddr)
	s.T().Cleanup(func() { _ = conn.Close() })

	session := &Session{s: s, name: name, conn: conn}
	var update event.UsersUpdate
	session.Expect(event.UsersUpdateName, &update)
	s.Require().NotEmpty(update.Users)
	// Users are listed in connect order, the newest is last
	session.SID = update.Users[len(update.Users)-1].SID
	s.log(fmt.Sprintf("  ====== %s connected as %s ======", name, session.SID))
	return session
}

func (c *Session) Send(name event.Name, payload any) {
	data, err := json.Marshal(payload)
	c.s.Require().NoError(err)
	raw, err := json.Marshal(relay.Frame{Event: name, Data: data})
	c.s.Require().NoError(err)
	c.s.Require().NoError(c.conn.WriteMessage(websocket.TextMessage, raw))
}

// Expect reads frames until one named name arrives and decodes it into out.
func (c *Session) Expect(name event.Name, out any) {
	deadline := time.Now().Add(readTimeout)
	for {
		c.s.Require().NoError(c.conn.SetReadDeadline(deadline))
		_, raw, err := c.conn.ReadMessage()
		c.s.Require().NoError(err, "%s waiting for %s", c.name, name)

		var f relay.Frame
		c.s.Require().NoError(json.Unmarshal(raw, &f))
		if c.s.Config.DebugJSON {
			c.s.T().Logf("%s <- %s", c.name, string(raw))
		}
		if f.Event == name {
			if out != nil {
				c.s.Require().NoError(json.Unmarshal(f.Data, out))
			}
			return
		}
	}
}

func (c *Session) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

func (s *BaseWebsocketSuite) log(header string) {
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}
