package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultResponseCacheSize = 128

// CachedModel memoizes final responses of non-streaming requests. Identical
// requests (instructions, contents, tools) are answered from memory without
// calling the wrapped model. Failed generations are never stored.
type CachedModel struct {
	next  Model
	cache *lru.Cache[string, Response]
}

// NewCachedModel wraps next with an LRU response cache of size entries
// (128 when size <= 0).
func NewCachedModel(next Model, size int) *CachedModel {
	if size <= 0 {
		size = defaultResponseCacheSize
	}
	cache, _ := lru.New[string, Response](size)
	return &CachedModel{next: next, cache: cache}
}

// Info reports the wrapped model.
func (c *CachedModel) Info() Info { return c.next.Info() }

// Generate implements Model.
func (c *CachedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	if req.Stream {
		return c.next.Generate(ctx, req)
	}
	key, err := requestKey(req)
	if err != nil {
		return c.next.Generate(ctx, req)
	}

	out := make(chan Response, 1)
	errCh := make(chan error, 1)

	if resp, ok := c.cache.Get(key); ok {
		out <- resp
		close(out)
		close(errCh)
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)

		respCh, upstreamErrCh := c.next.Generate(ctx, req)
		resp, err := Final(ctx, respCh, upstreamErrCh)
		if err != nil {
			errCh <- err
			return
		}
		c.cache.Add(key, resp)
		out <- resp
	}()

	return out, errCh
}

// Len returns the number of cached responses.
func (c *CachedModel) Len() int { return c.cache.Len() }

type keyedPart struct {
	Kind string `json:"kind"`
	Part any    `json:"part"`
}

type keyedContent struct {
	Role  string      `json:"role"`
	Parts []keyedPart `json:"parts"`
}

// requestKey hashes a request. Parts are tagged with their concrete type so
// structurally similar parts of different kinds never collide.
func requestKey(req Request) (string, error) {
	contents := make([]keyedContent, len(req.Contents))
	for i, c := range req.Contents {
		kc := keyedContent{Role: c.Role, Parts: make([]keyedPart, len(c.Parts))}
		for j, p := range c.Parts {
			kc.Parts[j] = keyedPart{Kind: fmt.Sprintf("%T", p), Part: p}
		}
		contents[i] = kc
	}
	data, err := json.Marshal(struct {
		Instructions string           `json:"instructions"`
		Contents     []keyedContent   `json:"contents"`
		Tools        []ToolDefinition `json:"tools"`
	}{req.Instructions, contents, req.Tools})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

var _ Model = (*CachedModel)(nil)
