package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Aleph-Alpha/gravity/internal/events"
	"github.com/Aleph-Alpha/gravity/internal/model"
	"github.com/Aleph-Alpha/gravity/internal/pipeline"
	"github.com/Aleph-Alpha/gravity/v1/vectordb"
	"github.com/gin-gonic/gin"
)

type createClusterRequest struct {
	Name  string  `json:"name" binding:"required,max=255"`
	Color string  `json:"color" binding:"omitempty,max=16"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type createClusterResponse struct {
	Cluster   model.Cluster `json:"galaxy"`
	Links     int           `json:"links"`
	LinkError string        `json:"linkError,omitempty"`
}

func (s *Server) createCluster(c *gin.Context) {
	var req createClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	cluster, linked, err := s.reconciler.CreateCluster(c.Request.Context(), model.Cluster{
		OwnerID: owner(c),
		Name:    req.Name,
		Color:   req.Color,
		X:       req.X,
		Y:       req.Y,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	resp := createClusterResponse{Cluster: cluster, Links: linked.Links}
	if linked.Err != nil {
		resp.LinkError = linked.Err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) listClusters(c *gin.Context) {
	clusters, err := s.store.ListClusters(c.Request.Context(), owner(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"galaxies": clusters})
}

func (s *Server) deleteCluster(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.reconciler.DeleteCluster(c.Request.Context(), owner(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createFragmentRequest struct {
	Content              string `json:"content" binding:"required"`
	Kind                 string `json:"kind" binding:"omitempty,oneof=highlight summary"`
	SourceDocFingerprint string `json:"sourceDocFingerprint" binding:"omitempty,len=64,hexadecimal"`
}

// createFragment stores a pending fragment and announces it. Guest fragments
// have no row; they get a random id and live in the guest space only.
func (s *Server) createFragment(c *gin.Context) {
	var req createFragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	kind := model.KindHighlight
	if req.Kind != "" {
		kind = model.FragmentKind(req.Kind)
	}

	f := model.Fragment{
		OwnerID:           owner(c),
		SourceFingerprint: req.SourceDocFingerprint,
		Content:           model.Truncate(req.Content, model.MaxContentLength),
		Kind:              kind,
	}
	s.enqueue(c, f, events.TopicFragmentCreated, func(f model.Fragment) any {
		return events.FragmentCreated{
			FragmentID:           f.ID,
			OwnerID:              f.OwnerID,
			SourceDocFingerprint: f.SourceFingerprint,
			Text:                 f.Content,
			Kind:                 string(f.Kind),
		}
	})
}

type createSummaryRequest struct {
	Text                 string `json:"text" binding:"required"`
	SourceDocFingerprint string `json:"sourceDocFingerprint" binding:"omitempty,len=64,hexadecimal"`
	Language             string `json:"language" binding:"omitempty,max=35"`
}

// createSummary stores a pending summary fragment and asks for it to be
// generated from text. The language defaults to the Accept-Language header.
func (s *Server) createSummary(c *gin.Context) {
	var req createSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	lang := req.Language
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}

	f := model.Fragment{
		OwnerID:           owner(c),
		SourceFingerprint: req.SourceDocFingerprint,
		Content:           model.Truncate(req.Text, model.MaxContentLength),
		Kind:              model.KindSummary,
	}
	s.enqueue(c, f, events.TopicSummaryRequested, func(f model.Fragment) any {
		return events.SummaryRequested{
			SummaryID:            f.ID,
			OwnerID:              f.OwnerID,
			SourceDocFingerprint: f.SourceFingerprint,
			Text:                 model.Truncate(req.Text, pipeline.MaxSummaryInput),
			Language:             lang,
		}
	})
}

// enqueue stores f as pending and publishes the event built for it, keyed by
// owner so one owner's events stay in order. Guests get a random id instead
// of a row. A row whose event could not be published is withdrawn and the
// client is asked to retry, since nothing would ever process it.
func (s *Server) enqueue(c *gin.Context, f model.Fragment, topic string, event func(model.Fragment) any) {
	ctx := c.Request.Context()
	f.Status = model.StatusPending
	if model.IsGuest(f.OwnerID) {
		id, err := guestID()
		if err != nil {
			s.fail(c, err)
			return
		}
		f.ID = id
	} else if err := s.store.CreateFragment(ctx, &f); err != nil {
		s.fail(c, err)
		return
	}

	if err := s.publisher.Publish(ctx, topic, f.OwnerID, event(f), nil); err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to announce fragment", err, map[string]interface{}{
			"fragment_id": f.ID,
			"topic":       topic,
		})
		if !model.IsGuest(f.OwnerID) {
			if delErr := s.store.DeleteFragment(context.WithoutCancel(ctx), f.ID); delErr != nil {
				s.logger.ErrorWithContext(ctx, "Failed to withdraw unannounced fragment", delErr, map[string]interface{}{"fragment_id": f.ID})
			}
		}
		respondError(c, http.StatusServiceUnavailable, "unavailable", errors.New("not queued for processing, retry later"))
		return
	}
	c.JSON(http.StatusAccepted, f)
}

func guestID() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("api: guest id: %w", err)
	}
	return binary.BigEndian.Uint64(b[:])>>1 | 1, nil
}

func (s *Server) listFragments(c *gin.Context) {
	fragments, err := s.store.ListFragments(c.Request.Context(), owner(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fragments": fragments})
}

// deleteFragment removes a fragment. Guest fragments only exist as guest
// space points, so those are deleted from the index directly.
func (s *Server) deleteFragment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	who := owner(c)
	if model.IsGuest(who) {
		if err := s.engine.RemoveFragment(ctx, who, id, vectordb.SpaceGuest); err != nil {
			s.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}
	if err := s.reconciler.DeleteFragment(ctx, who, id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type gravityRequest struct {
	Term string `json:"term" binding:"required,max=1000"`
}

type gravityHit struct {
	FragmentID uint64  `json:"fragmentId"`
	Score      float32 `json:"score"`
	Text       string  `json:"text"`
}

func (s *Server) gravity(c *gin.Context) {
	var req gravityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	candidates, err := s.engine.Term(c.Request.Context(), owner(c), req.Term)
	if err != nil {
		s.fail(c, err)
		return
	}
	hits := make([]gravityHit, 0, len(candidates))
	for _, cand := range candidates {
		hits = append(hits, gravityHit{FragmentID: cand.FragmentID, Score: cand.Score, Text: cand.Text})
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

type suggestLinksRequest struct {
	Text string `json:"text" binding:"required,max=30000"`
	TopK int    `json:"topK" binding:"omitempty,min=1,max=50"`
}

type suggestion struct {
	FragmentID  uint64  `json:"fragmentId,omitempty"`
	Type        string  `json:"type"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Score       float32 `json:"score"`
	Text        string  `json:"text"`
}

// suggestLinks ranks the caller's fragments and documents against a draft
// text. Nothing is written.
func (s *Server) suggestLinks(c *gin.Context) {
	var req suggestLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	found, err := s.engine.Suggest(c.Request.Context(), owner(c), req.Text, req.TopK)
	if err != nil {
		s.fail(c, err)
		return
	}
	results := make([]suggestion, 0, len(found))
	for _, f := range found {
		results = append(results, suggestion{
			FragmentID:  f.FragmentID,
			Type:        f.Type,
			Fingerprint: f.Document,
			Score:       f.Score,
			Text:        f.Text,
		})
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// uploadDocument stores the file under its SHA-256 fingerprint and announces
// it for analysis.
func (s *Server) uploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Errorf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
		return
	}
	file, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Errorf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
		return
	}

	ctx := c.Request.Context()
	who := owner(c)
	fp := pipeline.Fingerprint(data)
	key := objectKey(who, fp)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	if err := s.blobs.UploadWithContentType(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		s.fail(c, err)
		return
	}

	evt := events.DocumentIngested{
		Fingerprint: fp,
		OwnerID:     who,
		ObjectKey:   key,
		FileName:    header.Filename,
		ContentType: contentType,
	}
	if err := s.publisher.Publish(ctx, events.TopicDocumentIngested, fp, evt, nil); err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to announce document", err, map[string]interface{}{"fingerprint": fp})
		respondError(c, http.StatusServiceUnavailable, "unavailable", errors.New("document stored but not queued for analysis"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"fingerprint": fp, "objectKey": key})
}

func (s *Server) documentURL(c *gin.Context) {
	fp := c.Param("fingerprint")
	if err := s.validate.Var(fp, "len=64,hexadecimal"); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid fingerprint"))
		return
	}
	url, err := s.blobs.SignedURL(c.Request.Context(), objectKey(owner(c), fp))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) profile(c *gin.Context) {
	p, err := s.store.FindProfile(c.Request.Context(), owner(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func objectKey(owner, fingerprint string) string {
	return "documents/" + owner + "/" + fingerprint
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}
