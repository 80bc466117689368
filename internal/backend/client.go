// Package backend talks to the clip storage API: service login and
// authenticated clip uploads.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/your-org/clipflow/internal/clip"
)

const (
	loginPath  = "/api/users/login"
	uploadPath = "/api/clips/upload"
)

// Client is a thin HTTP client for the backend API.
type Client struct {
	baseURL      string
	username     string
	password     string
	httpClient   *http.Client
	maxErrorBody int64
}

type ClientParams struct {
	BaseURL      string
	Username     string
	Password     string
	HTTPClient   *http.Client
	MaxErrorBody int64
}

// NewClient constructs a backend Client.
func NewClient(p ClientParams) *Client {
	hc := p.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	maxBody := p.MaxErrorBody
	if maxBody <= 0 {
		maxBody = 4096
	}
	return &Client{
		baseURL:      strings.TrimRight(p.BaseURL, "/"),
		username:     p.Username,
		password:     p.Password,
		httpClient:   hc,
		maxErrorBody: maxBody,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges the service credentials for a bearer token.
func (c *Client) Login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return "", &clip.AuthError{Reason: clip.ReasonLoginFailed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", &clip.AuthError{Reason: clip.ReasonLoginFailed, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &clip.AuthError{Reason: clip.ReasonLoginFailed, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &clip.AuthError{
			Reason: clip.ReasonLoginFailed,
			Status: resp.StatusCode,
			Err:    errors.New(c.readErrorBody(resp.Body)),
		}
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &clip.AuthError{Reason: clip.ReasonLoginFailed, Status: resp.StatusCode, Err: fmt.Errorf("decode login response: %w", err)}
	}
	if out.Token == "" {
		return "", &clip.AuthError{Reason: clip.ReasonLoginFailed, Status: resp.StatusCode, Err: errors.New("empty token in login response")}
	}
	return out.Token, nil
}

// Upload streams the clip file and its metadata as a multipart form.
// Only HTTP 200 counts as success.
func (c *Client) Upload(ctx context.Context, token string, cl *clip.Clip) error {
	f, err := os.Open(cl.Path)
	if err != nil {
		return &clip.DispatchError{Reason: clip.ReasonNetworkFailure, Err: fmt.Errorf("open clip: %w", err)}
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, f, cl))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, pr)
	if err != nil {
		return &clip.DispatchError{Reason: clip.ReasonNetworkFailure, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &clip.DispatchError{Reason: clip.ReasonNetworkFailure, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &clip.DispatchError{
			Reason: clip.ReasonNonOkStatus,
			Status: resp.StatusCode,
			Body:   c.readErrorBody(resp.Body),
			Err:    fmt.Errorf("upload rejected after %s", time.Since(start).Round(time.Millisecond)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func writeUploadForm(mw *multipart.Writer, file io.Reader, cl *clip.Clip) error {
	fields := []struct{ name, value string }{
		{"streamer", cl.Streamer},
		{"title", cl.Title},
		{"link", cl.Link},
		{"submitter", cl.Submitter},
	}
	for _, field := range fields {
		if err := mw.WriteField(field.name, field.value); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("clip", filepath.Base(cl.Path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, c.maxErrorBody))
	return strings.TrimSpace(string(b))
}
