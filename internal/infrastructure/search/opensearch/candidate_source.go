package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/medcheck/MedCheck-Engine/internal/domain/alert"
	"github.com/medcheck/MedCheck-Engine/internal/infrastructure/monitoring/logging"
	"github.com/medcheck/MedCheck-Engine/pkg/errors"
)

// CandidateSource narrows the alert corpus by full-text relevance before
// the ranker scores candidates exhaustively. It implements
// alert.CandidateSource.
type CandidateSource struct {
	client *opensearchgo.Client
	index  string
	log    logging.Logger
}

// NewCandidateSource constructs a CandidateSource over the given index.
func NewCandidateSource(client *opensearchgo.Client, index string, log logging.Logger) *CandidateSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &CandidateSource{client: client, index: index, log: log.Named("candidate_source")}
}

// SearchCandidates returns the IDs of the best-matching alerts, capped at
// limit. Only IDs travel back; the ranker rescoring works from the
// authoritative corpus rows.
func (s *CandidateSource) SearchCandidates(ctx context.Context, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	dsl := map[string]interface{}{
		"size":    limit,
		"_source": false,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"title^3", "product_names^2", "excerpt", "batch_numbers"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"active": true},
				},
			},
		},
	}

	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal candidate query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}

	start := time.Now()
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAlertSearchFailed, "candidate search failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		return nil, errors.Newf(errors.ErrCodeAlertSearchFailed, "candidate search returned %s", resp.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode candidate response")
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}

	s.log.Debug("candidate search executed",
		logging.String("query", query),
		logging.Int("hits", len(ids)),
		logging.Duration("took", time.Since(start)))
	return ids, nil
}

// Indexer keeps the full-text index in step with the alert corpus.
type Indexer struct {
	client *opensearchgo.Client
	index  string
	log    logging.Logger
}

// NewIndexer constructs an Indexer over the given index.
func NewIndexer(client *opensearchgo.Client, index string, log logging.Logger) *Indexer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Indexer{client: client, index: index, log: log.Named("alert_indexer")}
}

// alertIndexMapping holds the index settings for alert documents. Batch
// numbers are keywords so exact tokens survive analysis.
func alertIndexMapping() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"title":         map[string]interface{}{"type": "text"},
				"excerpt":       map[string]interface{}{"type": "text"},
				"product_names": map[string]interface{}{"type": "text"},
				"batch_numbers": map[string]interface{}{"type": "keyword"},
				"manufacturer":  map[string]interface{}{"type": "text"},
				"severity":      map[string]interface{}{"type": "keyword"},
				"category":      map[string]interface{}{"type": "keyword"},
				"active":        map[string]interface{}{"type": "boolean"},
				"date":          map[string]interface{}{"type": "date"},
			},
		},
	}
}

// EnsureIndex creates the alert index if it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{i.index}}
	resp, err := exists.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to check index existence")
	}
	resp.Body.Close()
	if resp.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(alertIndexMapping())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}

	create := opensearchapi.IndicesCreateRequest{Index: i.index, Body: bytes.NewReader(body)}
	cresp, err := create.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create index")
	}
	defer cresp.Body.Close()
	if cresp.IsError() {
		return errors.Newf(errors.ErrCodeInternal, "index creation returned %s", cresp.Status())
	}

	i.log.Info("alert index created", logging.String("index", i.index))
	return nil
}

// IndexAlert writes one alert document, replacing any previous version.
func (i *Indexer) IndexAlert(ctx context.Context, a *alert.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(map[string]interface{}{
		"title":         a.Title,
		"excerpt":       a.Excerpt,
		"product_names": a.ProductNames,
		"batch_numbers": a.BatchNumbers,
		"manufacturer":  a.Manufacturer,
		"severity":      a.Severity.String(),
		"category":      string(a.Category),
		"active":        a.Active,
		"date":          a.Date,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal alert document")
	}

	req := opensearchapi.IndexRequest{
		Index:      i.index,
		DocumentID: a.ID,
		Body:       bytes.NewReader(doc),
		Refresh:    "false",
	}
	resp, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlertIndexFailed, "failed to index alert")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.Newf(errors.ErrCodeAlertIndexFailed, "alert indexing returned %s", resp.Status())
	}
	return nil
}

// DeleteAlert removes an alert document. Missing documents are not errors;
// deactivation may race with index rebuilds.
func (i *Indexer) DeleteAlert(ctx context.Context, id string) error {
	req := opensearchapi.DeleteRequest{Index: i.index, DocumentID: id}
	resp, err := req.Do(ctx, i.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete alert document")
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != 404 {
		return errors.Newf(errors.ErrCodeInternal, "alert deletion returned %s", resp.Status())
	}
	return nil
}
