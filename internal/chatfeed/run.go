package chatfeed

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const dialTimeout = 10 * time.Second

// Run keeps the feed up to date until ctx is done. It connects the websocket
// first and loads the newest page afterwards, so that the fetch subscribes the
// new session. When the socket can't be opened or closes it polls instead,
// there is no reconnect.
func (f *Feed) Run(ctx context.Context) error {
	conn, err := f.connect(ctx)
	if err != nil {
		f.sugar.Warnf("Realtime connection unavailable, polling every %s: %v", f.opts.PollInterval, err)
	}

	err = f.FetchFirstPage(ctx)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return err
	}

	if conn != nil {
		f.setConnected(true)
		f.readLoop(ctx, conn)
		f.setConnected(false)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.sugar.Warnf("Realtime connection closed, polling every %s", f.opts.PollInterval)
	}

	return f.poll(ctx)
}

func (f *Feed) connect(ctx context.Context) (*websocket.Conn, error) {
	err := f.do(ctx, http.MethodGet, f.endpoint("/api/auth/newSession", nil), nil, nil)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	for _, cookie := range f.client.Jar.Cookies(f.baseURL) {
		header.Add("Cookie", cookie.String())
	}

	wsURL := *f.baseURL
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = wsURL.Path + "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			f.sugar.Debug(err)
			return
		}

		err = f.Apply(frame)
		if err != nil {
			f.sugar.Warn(err)
		}
	}
}

func (f *Feed) poll(ctx context.Context) error {
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := f.refetchAll(ctx)
			if err != nil && ctx.Err() == nil {
				f.sugar.Warnf("Polling chat %d: %v", f.opts.ChatID, err)
			}
		}
	}
}
