package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
)

func isRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ReadSource returns the bytes behind a local path or an http(s) URL.
func ReadSource(ctx context.Context, client *resty.Client, location string) ([]byte, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("location is required")
	}
	if !isRemote(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return data, nil
	}

	if client == nil {
		client = resty.New()
	}
	resp, err := client.R().SetContext(ctx).Get(location)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", location, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: status %d", location, resp.StatusCode())
	}
	return resp.Body(), nil
}

// LoadMetadata reads and parses a metadata JSON document. An empty location
// yields zero metadata.
func LoadMetadata(ctx context.Context, client *resty.Client, location string) (Metadata, error) {
	var metadata Metadata
	if strings.TrimSpace(location) == "" {
		return metadata, nil
	}
	raw, err := ReadSource(ctx, client, location)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return metadata, nil
}

// ResolveLabels picks the configured labels, falling back to the metadata
// classes, and checks them against the declared output shape.
func ResolveLabels(configured []string, metadata Metadata) (LabelSet, error) {
	labels := LabelSet(configured)
	if len(labels) == 0 {
		labels = LabelSet(metadata.Classes)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels configured and metadata declares no classes")
	}
	if n := len(metadata.OutputShape); n > 0 {
		width := metadata.OutputShape[n-1]
		if width > 0 && int(width) != len(labels) {
			return nil, fmt.Errorf("model outputs %d classes but %d labels are configured", width, len(labels))
		}
	}
	return labels, nil
}
