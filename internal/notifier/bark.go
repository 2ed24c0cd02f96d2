package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// BarkSink sends to a Bark device URL, e.g. https://api.day.app/<key>.
type BarkSink struct {
	URL    string
	Client *http.Client
}

type barkMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Group string `json:"group,omitempty"`
}

func (s *BarkSink) Name() string { return "bark" }

func (s *BarkSink) Send(ctx context.Context, n *Notification) error {
	body, err := json.Marshal(barkMessage{Title: n.Title, Body: n.Body, Group: "checkin"})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	resp, err := postJSON(ctx, s.Client, s.URL, body)
	if err != nil {
		return fmt.Errorf("bark request failed: %w", err)
	}
	if code := gjson.GetBytes(resp, "code"); code.Exists() && code.Int() != 200 {
		return fmt.Errorf("bark returned code %d: %s", code.Int(), gjson.GetBytes(resp, "message").String())
	}
	return nil
}
