package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/classbridge/chatkit/internal/config"
	"github.com/classbridge/chatkit/internal/domain"
	"github.com/classbridge/chatkit/internal/observability"
)

const requestTimeout = 15 * time.Second

// Client talks to the backend's REST surface: history backfill, the group
// list and file upload. Single attempt per call; failures are returned to
// the caller, which owns presentation.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(cfg *config.Config, token string) *Client {
	return &Client{
		base:  cfg.API.BaseURL,
		token: token,
		http:  &http.Client{Timeout: requestTimeout},
	}
}

// Groups lists the chat groups the session user belongs to.
func (c *Client) Groups(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	if err := c.getJSON(ctx, "groups", c.base+"/chat/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroupMessages returns the ordered message history for a group,
// chronological ascending by server timestamp.
func (c *Client) GroupMessages(ctx context.Context, groupID int) ([]domain.Message, error) {
	var messages []domain.Message
	url := fmt.Sprintf("%s/chat/groups/%d/messages", c.base, groupID)
	if err := c.getJSON(ctx, "history", url, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// Upload posts a file as multipart form data and returns the stored
// location the chat channel's file frames reference.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*domain.UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy file into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/upload", body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	result := &domain.UploadResult{}
	if err := c.do(req, "upload", result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		observability.IncRESTRequest(op, "error")
		return fmt.Errorf("%w: %v", domain.ErrInternalServerError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		observability.IncRESTRequest(op, "error")
		return statusError(resp.StatusCode).WithMessage(
			fmt.Sprintf("%s request failed with status %d", op, resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			observability.IncRESTRequest(op, "error")
			return fmt.Errorf("decode response: %w", err)
		}
	}
	observability.IncRESTRequest(op, "ok")
	return nil
}

func statusError(code int) *domain.AppError {
	switch code {
	case http.StatusBadRequest:
		return domain.ErrInvalidRequest
	case http.StatusUnauthorized:
		return domain.ErrInvalidToken
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return domain.ErrInternalServerError
	}
}
