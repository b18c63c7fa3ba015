package pinecone

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

type indexResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

func (r indexResponse) toDomain() domain.IndexInfo {
	return domain.IndexInfo{
		Name:      r.Name,
		Dimension: r.Dimension,
		Metric:    r.Metric,
		Host:      r.Host,
		Ready:     r.Status.Ready,
	}
}

func (c *Client) ListIndexes(ctx context.Context) ([]domain.IndexInfo, error) {
	var response struct {
		Indexes []indexResponse `json:"indexes"`
	}
	err := c.call(ctx, "list_indexes", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodGet, c.controlURL+"/indexes", nil, &response, "list_indexes")
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.IndexInfo, 0, len(response.Indexes))
	for _, idx := range response.Indexes {
		out = append(out, idx.toDomain())
	}
	return out, nil
}

func (c *Client) DescribeIndex(ctx context.Context, name string) (domain.IndexInfo, error) {
	var response indexResponse
	err := c.call(ctx, "describe_index", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodGet, c.controlURL+"/indexes/"+name, nil, &response, "describe_index")
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return domain.IndexInfo{}, domain.WrapError(domain.ErrNotFound, "describe index", fmt.Errorf("index %s", name))
		}
		return domain.IndexInfo{}, err
	}
	return response.toDomain(), nil
}

func (c *Client) CreateIndex(ctx context.Context, name string, dimension int) error {
	payload := map[string]any{
		"name":      name,
		"dimension": dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  c.cloud,
				"region": c.region,
			},
		},
	}

	err := c.call(ctx, "create_index", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, c.controlURL+"/indexes", payload, nil, "create_index")
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	err := c.call(ctx, "delete_index", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodDelete, c.controlURL+"/indexes/"+name, nil, nil, "delete_index")
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}

	c.InvalidateHost()
	return nil
}
