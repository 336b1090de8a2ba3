package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxMessages = "concord_messages"

// MessageRecord is what gets stored in the index. Ids are strings because
// snowflakes don't fit the index's float numbers.
type MessageRecord struct {
	ID         string `json:"id"`
	ServerID   string `json:"serverId"`
	ChannelID  string `json:"channelId"`
	MemberID   string `json:"memberId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAt"`
}

// Meili indexes channel messages in Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	sugar   *zap.SugaredLogger
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili starts a health loop, an unreachable server only marks the client
// unhealthy until it comes back.
func NewMeili(url string, apiKey string, sugar *zap.SugaredLogger) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		sugar:  sugar,
		done:   make(chan struct{}),
	}

	_, err := m.client.Health()
	if err != nil {
		sugar.Warnf("search: meilisearch unavailable at %s: %v", url, err)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop(10 * time.Second)
	return m
}

func (m *Meili) configureIndex() {
	_, err := m.client.CreateIndex(&meili.IndexConfig{Uid: idxMessages, PrimaryKey: "id"})
	if err != nil {
		m.sugar.Debugf("search: create index %s (may already exist): %v", idxMessages, err)
	}

	index := m.client.Index(idxMessages)

	filterable := []interface{}{"serverId", "channelId", "memberId"}
	_, err = index.UpdateFilterableAttributes(&filterable)
	if err != nil {
		m.sugar.Warnf("search: update filterable attributes: %v", err)
	}

	searchable := []string{"content", "authorName"}
	_, err = index.UpdateSearchableAttributes(&searchable)
	if err != nil {
		m.sugar.Warnf("search: update searchable attributes: %v", err)
	}

	sortable := []string{"createdAt"}
	_, err = index.UpdateSortableAttributes(&sortable)
	if err != nil {
		m.sugar.Warnf("search: update sortable attributes: %v", err)
	}
}

func (m *Meili) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.sugar.Info("search: meilisearch recovered, configuring index")
				m.configureIndex()
			}
		}
	}
}

func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) IndexMessage(record MessageRecord) error {
	_, err := m.client.Index(idxMessages).AddDocuments([]MessageRecord{record}, nil)
	return err
}

func (m *Meili) RemoveMessage(id string) error {
	_, err := m.client.Index(idxMessages).DeleteDocument(id, nil)
	return err
}

// RemoveWhere deletes every document matching a Meilisearch filter.
func (m *Meili) RemoveWhere(filter string) error {
	_, err := m.client.Index(idxMessages).DeleteDocumentsByFilter(filter, nil)
	return err
}

func (m *Meili) Search(serverID string, text string, limit int) ([]Result, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	resp, err := m.client.Index(idxMessages).Search(text, &meili.SearchRequest{
		Limit:                 int64(limit),
		Filter:                fmt.Sprintf("serverId = %q", serverID),
		Sort:                  []string{"createdAt:desc"},
		AttributesToHighlight: []string{"content"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:         decodeString(hit, "id"),
		ChannelID:  decodeString(hit, "channelId"),
		MemberID:   decodeString(hit, "memberId"),
		AuthorName: decodeString(hit, "authorName"),
		Content:    decodeString(hit, "content"),
	}

	var createdAt int64
	if raw, ok := hit["createdAt"]; ok {
		_ = json.Unmarshal(raw, &createdAt)
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()

	r.Snippet = r.Content
	if formatted := decodeFormattedString(hit, "content"); formatted != "" {
		r.Snippet = formatted
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}

	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(decodeString(formatted, key))
}
