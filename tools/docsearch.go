package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/toolwire/toolwire/errors"
	"github.com/toolwire/toolwire/mcp"
)

// The document-search service is an external collaborator: an HTTP
// service that embeds and indexes documents and answers similarity
// queries. Only its /api/search boundary is consumed here.
const docSearchEnvVar = "TOOLWIRE_DOCSEARCH_URL"

var docSearchHTTPClient = &http.Client{Timeout: 60 * time.Second}

type SearchDocsInput struct {
	Query     string `json:"query" jsonschema_description:"Free-text query to search the document index for."`
	IndexName string `json:"index_name,omitempty" jsonschema_description:"Document index to search (defaults to 'default')."`
	K         int    `json:"k,omitempty" jsonschema_description:"Number of passages to return (default 2)."`
}

// SearchDocsDefinition queries the companion document-search service
// and returns the matching passages.
var SearchDocsDefinition = Definition{
	Name:        "search_docs",
	Description: "Search the indexed document collection for passages relevant to a query. Args: query, optional index_name and k.",
	InputSchema: GenerateSchema[SearchDocsInput](),
	Handler:     searchDocs,
}

type searchRequest struct {
	Query     string `json:"query"`
	IndexName string `json:"index_name"`
	K         int    `json:"k"`
}

type searchResponse struct {
	Success bool        `json:"success"`
	Results []searchHit `json:"results"`
	Detail  string      `json:"detail"`
}

type searchHit struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

func searchDocs(ctx context.Context, args json.RawMessage) ([]mcp.Content, error) {
	var in SearchDocsInput
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, errors.Wrapf(err, "invalid search_docs arguments")
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, errors.New("'query' must not be empty")
	}
	if in.IndexName == "" {
		in.IndexName = "default"
	}
	if in.K <= 0 {
		in.K = 2
	}

	baseURL := os.Getenv(docSearchEnvVar)
	if baseURL == "" {
		return nil, errors.New("document search is not configured: set %s", docSearchEnvVar)
	}

	body, err := json.Marshal(searchRequest{Query: in.Query, IndexName: in.IndexName, K: in.K})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/api/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := docSearchHTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "document search request failed")
	}
	defer resp.Body.Close()

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrapf(err, "invalid document search response")
	}
	if resp.StatusCode != http.StatusOK || !sr.Success {
		detail := sr.Detail
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, errors.New("document search failed: %s", detail)
	}

	if len(sr.Results) == 0 {
		return textResult(fmt.Sprintf("No passages matched %q in index %q.", in.Query, in.IndexName)), nil
	}

	var b strings.Builder
	for i, hit := range sr.Results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		if src, ok := hit.Metadata["source"]; ok {
			fmt.Fprintf(&b, "[%v]\n", src)
		}
		b.WriteString(hit.PageContent)
	}
	return textResult(b.String()), nil
}
