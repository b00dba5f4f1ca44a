package dashboard

import (
	"context"
	"sync"

	"github.com/LovationAdmin/finance-assistant/client"
)

const ChatApology = "Sorry, I encountered an error. Please try again."

const (
	TurnUser = "user"
	TurnBot  = "bot"
)

type Turn struct {
	Type string
	Text string
}

type ChatAPI interface {
	Chat(ctx context.Context, query string) (*client.ChatReply, error)
}

// Chat is an in-memory, append-only conversation.
type Chat struct {
	api ChatAPI

	mu    sync.Mutex
	turns []Turn
}

func NewChat(api ChatAPI) *Chat {
	return &Chat{api: api}
}

// Send appends the user's turn, asks the backend and appends its answer.
// It returns the bot turn.
func (c *Chat) Send(ctx context.Context, text string) Turn {
	c.append(Turn{Type: TurnUser, Text: text})

	bot := Turn{Type: TurnBot, Text: ChatApology}
	reply, err := c.api.Chat(ctx, text)
	if err == nil {
		switch {
		case reply.Response != "":
			bot.Text = reply.Response
		case reply.Error != "":
			bot.Text = reply.Error
		}
	}

	c.append(bot)
	return bot
}

func (c *Chat) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

func (c *Chat) append(t Turn) {
	c.mu.Lock()
	c.turns = append(c.turns, t)
	c.mu.Unlock()
}
