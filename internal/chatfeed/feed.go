// Package chatfeed keeps a paginated, live view of one chat for a client of
// the api. Updates arrive over the websocket while it is connected and by
// polling otherwise.
package chatfeed

import (
	"bytes"
	"concord-backend/internal/hub"
	"concord-backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Kind string

const (
	KindChannel      Kind = "channel"
	KindConversation Kind = "conversation"
)

const DefaultPollInterval = 1 * time.Second

var ErrBadStatus = errors.New("unexpected response status")

type Options struct {
	BaseURL string
	// HTTPClient must carry the login cookie in its Jar.
	HTTPClient   *http.Client
	Kind         Kind
	ChatID       int64
	ServerID     int64 // only needed to send into a channel
	PollInterval time.Duration
	Logger       *zap.SugaredLogger
	// OnChange is called after the cached items changed.
	OnChange func()
}

type Feed struct {
	opts    Options
	baseURL *url.URL
	client  *http.Client
	sugar   *zap.SugaredLogger

	mutex     sync.Mutex
	pages     []models.MessagePage
	connected bool
}

func New(opts Options) (*Feed, error) {
	baseURL, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("base url has to be http or https, got %q", opts.BaseURL)
	}

	switch opts.Kind {
	case KindChannel, KindConversation:
	default:
		return nil, fmt.Errorf("unknown chat kind %q", opts.Kind)
	}
	if opts.ChatID <= 0 {
		return nil, errors.New("chat id is required")
	}

	client := opts.HTTPClient
	if client == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		client = &http.Client{Jar: jar}
	}
	if client.Jar == nil {
		return nil, errors.New("http client needs a cookie jar")
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	sugar := opts.Logger
	if sugar == nil {
		sugar = zap.NewNop().Sugar()
	}

	return &Feed{opts: opts, baseURL: baseURL, client: client, sugar: sugar}, nil
}

func (f *Feed) chatQuery() url.Values {
	query := url.Values{}
	if f.opts.Kind == KindChannel {
		query.Set("channelID", strconv.FormatInt(f.opts.ChatID, 10))
	} else {
		query.Set("conversationID", strconv.FormatInt(f.opts.ChatID, 10))
	}
	return query
}

func (f *Feed) endpoint(path string, query url.Values) string {
	u := *f.baseURL
	u.Path = u.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (f *Feed) do(ctx context.Context, method string, target string, body []byte, v any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s: %d", ErrBadStatus, method, req.URL.Path, resp.StatusCode)
	}

	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (f *Feed) fetchPage(ctx context.Context, cursor string) (models.MessagePage, error) {
	path := "/api/message/fetch"
	if f.opts.Kind == KindConversation {
		path = "/api/directMessage/fetch"
	}

	query := f.chatQuery()
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var page models.MessagePage
	err := f.do(ctx, http.MethodGet, f.endpoint(path, query), nil, &page)
	if page.Items == nil {
		page.Items = []models.Message{}
	}
	return page, err
}

func (f *Feed) changed() {
	if f.opts.OnChange != nil {
		f.opts.OnChange()
	}
}

// FetchFirstPage drops every loaded page and loads the newest messages.
// With a session cookie present this also subscribes the session to the chat.
func (f *Feed) FetchFirstPage(ctx context.Context) error {
	page, err := f.fetchPage(ctx, "")
	if err != nil {
		return err
	}

	f.mutex.Lock()
	f.pages = []models.MessagePage{page}
	f.mutex.Unlock()

	f.changed()
	return nil
}

func (f *Feed) HasNextPage() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return len(f.pages) > 0 && f.pages[len(f.pages)-1].NextCursor != nil
}

// FetchNextPage loads the page of older messages, doing nothing when the
// oldest one is already loaded.
func (f *Feed) FetchNextPage(ctx context.Context) error {
	f.mutex.Lock()
	if len(f.pages) == 0 {
		f.mutex.Unlock()
		return f.FetchFirstPage(ctx)
	}
	cursor := f.pages[len(f.pages)-1].NextCursor
	f.mutex.Unlock()

	if cursor == nil {
		return nil
	}

	page, err := f.fetchPage(ctx, *cursor)
	if err != nil {
		return err
	}

	f.mutex.Lock()
	last := f.pages[len(f.pages)-1].NextCursor
	if last != nil && *last == *cursor {
		f.pages = append(f.pages, page)
	}
	f.mutex.Unlock()

	f.changed()
	return nil
}

// refetchAll reloads as many pages as are loaded, following the cursors the
// server returns now, and replaces the cache with them.
func (f *Feed) refetchAll(ctx context.Context) error {
	f.mutex.Lock()
	count := max(len(f.pages), 1)
	f.mutex.Unlock()

	pages := make([]models.MessagePage, 0, count)
	cursor := ""
	for range count {
		page, err := f.fetchPage(ctx, cursor)
		if err != nil {
			return err
		}
		pages = append(pages, page)

		if page.NextCursor == nil {
			break
		}
		cursor = *page.NextCursor
	}

	f.mutex.Lock()
	f.pages = pages
	f.mutex.Unlock()

	f.changed()
	return nil
}

// Send posts a message and shows it right away, the echo from the websocket
// is merged into it.
func (f *Feed) Send(ctx context.Context, content string, fileURL string) (models.Message, error) {
	path := "/api/message/create"
	query := f.chatQuery()
	if f.opts.Kind == KindChannel {
		if f.opts.ServerID <= 0 {
			return models.Message{}, errors.New("server id is required to send into a channel")
		}
		query.Set("serverID", strconv.FormatInt(f.opts.ServerID, 10))
	} else {
		path = "/api/directMessage/create"
	}

	body, err := json.Marshal(struct {
		Content string `json:"content"`
		FileURL string `json:"fileUrl,omitempty"`
	}{content, fileURL})
	if err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	err = f.do(ctx, http.MethodPost, f.endpoint(path, query), body, &msg)
	if err != nil {
		return msg, err
	}

	f.mutex.Lock()
	f.insert(msg)
	f.mutex.Unlock()

	f.changed()
	return msg, nil
}

// replace swaps the cached message with the same id, the mutex must be held.
func (f *Feed) replace(msg models.Message) bool {
	for p := range f.pages {
		for i := range f.pages[p].Items {
			if f.pages[p].Items[i].ID == msg.ID {
				f.pages[p].Items[i] = msg
				return true
			}
		}
	}
	return false
}

// insert prepends a new message to the first page, the mutex must be held.
func (f *Feed) insert(msg models.Message) {
	if f.replace(msg) {
		return
	}

	if len(f.pages) == 0 {
		f.pages = []models.MessagePage{{Items: []models.Message{}}}
	}
	f.pages[0].Items = append([]models.Message{msg}, f.pages[0].Items...)
}

// Apply updates the cache from one websocket frame. Frames of other chats and
// event types that don't concern messages are ignored.
func (f *Feed) Apply(frame []byte) error {
	eventType, payload, err := hub.ParseFrame(frame)
	if err != nil {
		return err
	}

	switch eventType {
	case hub.MessageCreated, hub.MessageModified, hub.MessageDeleted:
	default:
		return nil
	}

	var msg models.Message
	err = json.Unmarshal(payload, &msg)
	if err != nil {
		return fmt.Errorf("decode %s: %w", eventType, err)
	}
	if msg.ChatID() != f.opts.ChatID {
		return nil
	}

	f.mutex.Lock()
	changed := true
	if eventType == hub.MessageCreated {
		f.insert(msg)
	} else {
		changed = f.replace(msg)
	}
	f.mutex.Unlock()

	if changed {
		f.changed()
	}
	return nil
}

// Items returns the loaded messages, newest first.
func (f *Feed) Items() []models.Message {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	items := []models.Message{}
	for _, page := range f.pages {
		items = append(items, page.Items...)
	}
	return items
}

func (f *Feed) Connected() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.connected
}

func (f *Feed) setConnected(connected bool) {
	f.mutex.Lock()
	f.connected = connected
	f.mutex.Unlock()
}
