// Package chatapi is a typed client for the anon-chat REST backend.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/npezzotti/anon-chat/internal/types"
	"github.com/rs/zerolog"
)

type Client struct {
	base *url.URL
	http *http.Client
	log  zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client. The caller's client keeps its
// own cookie jar, if any.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l.With().Str("component", "chatapi").Logger()
	}
}

// New returns a client for the backend at baseURL. The default http.Client
// has a cookie jar so the admin session survives between calls, and no
// timeout: requests end when the transport errors or ctx is cancelled.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	c := &Client{
		base: u,
		http: &http.Client{Jar: jar},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL resolves a backend path, e.g. a message's file_url, against the base.
func (c *Client) URL(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return c.base.String() + path
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.URL("/api/" + strings.Join(escaped, "/"))
}

func (c *Client) GetRooms(ctx context.Context) ([]types.Room, error) {
	var rooms []types.Room
	if err := c.getJSON(ctx, "get rooms", c.endpoint("get_rooms"), &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) GetOnlineUsers(ctx context.Context, roomId string) (int, error) {
	var oc types.OnlineCount
	if err := c.getJSON(ctx, "get online users", c.endpoint("get_online_users", roomId), &oc); err != nil {
		return 0, err
	}
	return oc.Count, nil
}

// GetMessages fetches the full ordered message list of a room. anonymousId
// is optional; when present the backend counts the caller as online.
func (c *Client) GetMessages(ctx context.Context, roomId, anonymousId string) ([]types.Message, error) {
	u := c.endpoint("get_messages", roomId)
	if anonymousId != "" {
		u += "?" + url.Values{"anonymous_id": {anonymousId}}.Encode()
	}

	var msgs []types.Message
	if err := c.getJSON(ctx, "get messages", u, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) SendMessage(ctx context.Context, req types.SendMessageRequest) error {
	_, err := c.postJSON(ctx, "send message", c.endpoint("send_message"), req)
	return err
}

type Upload struct {
	RoomId      string
	AnonymousId string
	ParentId    string
	FileName    string
	Content     io.Reader
}

// UploadFile posts a multipart form and returns the stored file's url.
func (c *Client) UploadFile(ctx context.Context, up Upload) (string, error) {
	const op = "upload file"

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", up.FileName)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	if _, err := io.Copy(fw, up.Content); err != nil {
		return "", &TransportError{Op: op, Err: fmt.Errorf("read file: %w", err)}
	}

	fields := [][2]string{
		{"room_id", up.RoomId},
		{"anonymous_id", up.AnonymousId},
	}
	if up.ParentId != "" {
		fields = append(fields, [2]string{"parent_id", up.ParentId})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", &TransportError{Op: op, Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return "", &TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload_file"), body)
	if err != nil {
		return "", &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.doResult(op, req)
	if err != nil {
		return "", err
	}
	return res.FileUrl, nil
}

// CreateRoom returns the id the backend assigned to the new room.
func (c *Client) CreateRoom(ctx context.Context, req types.CreateRoomRequest) (string, error) {
	res, err := c.postJSON(ctx, "create room", c.endpoint("create_room"), req)
	if err != nil {
		return "", err
	}
	return res.RoomId, nil
}

func (c *Client) UpdateRoom(ctx context.Context, req types.UpdateRoomRequest) error {
	_, err := c.postJSON(ctx, "update room", c.endpoint("update_room"), req)
	return err
}

func (c *Client) DeleteRoom(ctx context.Context, roomId string) error {
	_, err := c.postJSON(ctx, "delete room", c.endpoint("delete_room"), types.DeleteRoomRequest{RoomId: roomId})
	return err
}

func (c *Client) VerifyRoomPassword(ctx context.Context, roomId, password string) error {
	_, err := c.postJSON(ctx, "verify room password", c.endpoint("verify_room_password"), types.VerifyRoomPasswordRequest{
		RoomId:   roomId,
		Password: password,
	})
	return err
}

// AdminLogin stores the admin session cookie in the client's jar.
func (c *Client) AdminLogin(ctx context.Context, username, password string) error {
	_, err := c.postJSON(ctx, "admin login", c.endpoint("admin_login"), types.AdminLoginRequest{
		Username: username,
		Password: password,
	})
	return err
}

// Download streams the file at fileUrl into w.
func (c *Client) Download(ctx context.Context, fileUrl string, w io.Writer) (int64, error) {
	const op = "download"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(fileUrl), nil)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &AppError{Op: op, StatusCode: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: op, Err: err}
	}
	return n, nil
}

func (c *Client) getJSON(ctx context.Context, op, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(op, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, u string, body any) (types.Result, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return types.Result{}, &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf))
	if err != nil {
		return types.Result{}, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doResult(op, req)
}

// doResult executes req and interprets the {success, error} envelope.
func (c *Client) doResult(op string, req *http.Request) (types.Result, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.Result{}, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.Result{}, c.errorFromResponse(op, resp)
	}

	var res types.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return types.Result{}, &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}

	if !res.Success {
		return res, &AppError{Op: op, StatusCode: resp.StatusCode, Message: res.Error}
	}
	return res, nil
}

func (c *Client) errorFromResponse(op string, resp *http.Response) error {
	var res types.Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil && !errors.Is(err, io.EOF) {
		c.log.Debug().Err(err).Str("op", op).Int("status", resp.StatusCode).Msg("undecodable error body")
	}
	return &AppError{Op: op, StatusCode: resp.StatusCode, Message: res.Error}
}
