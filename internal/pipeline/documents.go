package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/internal/processor"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/kafka"
	"github.com/Aleph-Alpha/gravity/v1/minio"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
)

// Fingerprint returns the lower-case hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HandleDocumentIngested consumes document.ingested: the blob is analysed
// once per fingerprint, indexed and recorded. A degraded analysis is
// recorded without a vector and replaced by the next successful one.
func (p *Pipeline) HandleDocumentIngested(ctx context.Context, msg kafka.Message) error {
	var evt events.DocumentIngested
	if err := kafka.Decode(msg, &evt); err != nil {
		return err
	}
	fp := strings.ToLower(evt.Fingerprint)
	owner := model.SanitizeOwner(evt.OwnerID)
	if owner == "" {
		return kafka.Permanent(ErrEmptyOwner)
	}

	existing, err := p.store.FindDocumentAnalysis(ctx, fp)
	switch {
	case err == nil && !existing.Degraded:
		p.logger.DebugWithContext(ctx, "Document already analysed", nil, map[string]interface{}{"fingerprint": fp})
		return nil
	case err != nil && !errors.Is(err, postgres.ErrRecordNotFound):
		return fmt.Errorf("pipeline: load analysis %s: %w", fp, err)
	}

	data, err := p.blobs.Download(ctx, evt.ObjectKey)
	if err != nil {
		if errors.Is(err, minio.ErrObjectNotFound) || errors.Is(err, minio.ErrObjectTooLarge) {
			return kafka.Permanent(err)
		}
		return fmt.Errorf("pipeline: download %s: %w", evt.ObjectKey, err)
	}
	if got := Fingerprint(data); got != fp {
		return kafka.Permanent(fmt.Errorf("%w: announced %s, got %s", ErrFingerprintMismatch, fp, got))
	}

	res, err := p.analyzer.Process(ctx, fp, processor.Payload{
		Text:        string(data),
		FileName:    evt.FileName,
		ContentType: evt.ContentType,
	})
	if err != nil {
		if embedding.IsPermanent(err) {
			return kafka.Permanent(err)
		}
		return err
	}

	doc := model.DocumentAnalysis{
		Fingerprint: fp,
		OwnerID:     owner,
		Name:        evt.FileName,
		ContentType: evt.ContentType,
		Summary:     res.Summary,
		Sentiment:   res.Sentiment,
		Degraded:    res.Degraded,
	}
	if doc.Tags, err = json.Marshal(res.Tags); err != nil {
		return kafka.Permanent(err)
	}

	if !res.Degraded && strings.TrimSpace(res.Summary) != "" {
		doc.VectorID, err = p.engine.IndexDocument(ctx, owner, fp, evt.FileName, res.Summary)
		if err != nil {
			return classify(err)
		}
	}

	saved, err := p.store.SaveDocumentAnalysis(ctx, &doc)
	if err != nil {
		return fmt.Errorf("pipeline: save analysis %s: %w", fp, err)
	}

	p.logger.InfoWithContext(ctx, "Document analysed", nil, map[string]interface{}{
		"fingerprint": fp,
		"owner_id":    owner,
		"degraded":    res.Degraded,
		"cached":      res.Cached,
		"saved":       saved,
	})
	return nil
}
