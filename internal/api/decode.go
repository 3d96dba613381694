package api

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
)

// maxBodyBytes bounds request bodies read by the JSON endpoints.
const maxBodyBytes = 1 << 20

// StartRequest is the body of POST /start.
type StartRequest struct {
	Message *string `json:"message"`
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return out, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return out, fmt.Errorf("empty body")
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, err
	}
	return out, nil
}

// ParseStartMessage validates a /start body and returns the message.
// Errors wrap ErrInvalidRequest and carry the client-facing text.
func ParseStartMessage(r io.Reader) (string, error) {
	req, err := decodeJSON[StartRequest](r)
	if err != nil {
		return "", newInvalidRequest(msgInvalidFormat + err.Error())
	}
	if req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		return "", newInvalidRequest(msgEmptyMessage)
	}
	return *req.Message, nil
}
