package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const pushPlusEndpoint = "https://www.pushplus.plus/send"

// PushPlusSink sends through the token-based PushPlus service.
type PushPlusSink struct {
	Token    string
	Endpoint string // defaults to the public API
	Client   *http.Client
}

type pushPlusMessage struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

func (s *PushPlusSink) Name() string { return "pushplus" }

func (s *PushPlusSink) Send(ctx context.Context, n *Notification) error {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = pushPlusEndpoint
	}

	body, err := json.Marshal(pushPlusMessage{
		Token:    s.Token,
		Title:    n.Title,
		Content:  n.Body,
		Template: "txt",
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	resp, err := postJSON(ctx, s.Client, endpoint, body)
	if err != nil {
		return fmt.Errorf("pushplus request failed: %w", err)
	}

	// PushPlus reports failures in the body with HTTP 200.
	if code := gjson.GetBytes(resp, "code"); code.Exists() && code.Int() != 200 {
		return fmt.Errorf("pushplus returned code %d: %s", code.Int(), gjson.GetBytes(resp, "msg").String())
	}
	return nil
}

// postJSON posts body and returns the response body. Statuses of 400 and
// above are errors.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return out, nil
}
