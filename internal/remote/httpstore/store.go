package httpstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dbrusnev/notelock/internal/remote"
)

func (c *Client) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var doc remote.Document
	err := c.do(ctx, http.MethodGet, "/v1/docs/"+collection+"/"+id, nil, &doc)
	if err != nil {
		return nil, mapError(err)
	}
	return doc, nil
}

func (c *Client) Set(ctx context.Context, collection, id string, fields remote.Document, merge bool) error {
	path := "/v1/docs/" + collection + "/" + id
	if merge {
		path += "?merge=true"
	}
	if err := c.do(ctx, http.MethodPut, path, fields, nil); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) Add(ctx context.Context, collection string, fields remote.Document) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/docs/"+collection, fields, &out); err != nil {
		return "", mapError(err)
	}
	return out.ID, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/docs/"+collection+"/"+id, nil, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// Query returns the caller's documents in the collection. The backend scopes
// every query to the authenticated user, so the only supported predicate is
// the userId equality the interface contract requires; it is validated and
// otherwise ignored.
func (c *Client) Query(ctx context.Context, collection string, preds ...remote.Predicate) ([]remote.Document, error) {
	if err := validatePredicates(preds); err != nil {
		return nil, err
	}

	var out struct {
		Documents []remote.Document `json:"documents"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/docs/"+collection, nil, &out); err != nil {
		return nil, mapError(err)
	}
	return out.Documents, nil
}

// Watch opens the backend's SSE stream for the collection and delivers every
// snapshot until ctx is cancelled or the subscription is unsubscribed.
func (c *Client) Watch(ctx context.Context, collection string, preds ...remote.Predicate) (*remote.WatchSubscription, error) {
	if err := validatePredicates(preds); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/docs/"+collection+"/watch", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives any per-request timeout
	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, mapError(&apiError{Status: resp.StatusCode, Message: "watch rejected"})
	}

	ch := make(chan []remote.Document, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		r := bufio.NewReader(resp.Body)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			payload, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var docs []remote.Document
			if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &docs); err != nil {
				c.log.Warn(ctx, "dropping malformed watch frame", "collection", collection, "err", err)
				continue
			}
			select {
			case ch <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()

	return remote.NewWatchSubscription(ch, cancel), nil
}

func validatePredicates(preds []remote.Predicate) error {
	for _, p := range preds {
		if p.Field != "userId" || p.Op != "==" {
			return fmt.Errorf("unsupported predicate %s %s", p.Field, p.Op)
		}
	}
	return nil
}
