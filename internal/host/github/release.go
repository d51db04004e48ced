package github

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/azagal258/objektdl/internal/model"
)

const maxErrorBody = 512

//go:embed release.schema.json
var releaseSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func releaseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(releaseSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("decode release schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("release.schema.json", doc); err != nil {
			schemaErr = fmt.Errorf("add release schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("release.schema.json")
	})
	return schema, schemaErr
}

// DecodeRelease validates body against the release schema and decodes it.
func DecodeRelease(body []byte) (*model.Release, error) {
	sch, err := releaseSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: release json: %v", ErrParse, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: release metadata: %v", ErrParse, err)
	}

	var rel model.Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("%w: release json: %v", ErrParse, err)
	}
	return &rel, nil
}

// LatestReleaseURL returns the endpoint queried by FetchLatestRelease.
func (c *Client) LatestReleaseURL() string {
	return fmt.Sprintf("%s/repos/%s/releases/latest", c.APIBase, c.Repo)
}

// FetchLatestRelease returns the latest published release of c.Repo.
func (c *Client) FetchLatestRelease(ctx context.Context) (*model.Release, error) {
	ctx, cancel := context.WithTimeout(ctx, c.MetadataTimeout)
	defer cancel()

	url := c.LatestReleaseURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	c.decorate(req, true)

	resp, err := c.httpClient(c.MetadataTimeout).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d from %s: %s", ErrNetwork, resp.StatusCode, url, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrNetwork, url, err)
	}
	return DecodeRelease(body)
}
