package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hedspi/phone-assistant/internal/domain/catalog"
	"github.com/hedspi/phone-assistant/internal/platform/ctxutil"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

const (
	maxErrorBodyBytes = 1024
	maxResponseBytes  = 64 << 20
)

var pointIDNamespace = uuid.MustParse("6c0e3f5a-3b8e-4d52-9a41-1f2b7c9d0e55")

// ProductIndex stores catalog products as Qdrant points, payload carrying the
// product projection.
type ProductIndex struct {
	log      *logger.Logger
	cfg      Config
	baseURL  string
	distance string
	http     *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type searchItem struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload productPayload  `json:"payload"`
}

type productPayload struct {
	Title        string   `json:"title"`
	Promotion    string   `json:"product_promotion"`
	Specs        string   `json:"product_specs"`
	Price        string   `json:"current_price"`
	ColorOptions []string `json:"color_options"`
	URL          string   `json:"url"`
}

func NewProductIndex(ctx context.Context, log *logger.Logger, cfg Config) (*ProductIndex, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	s := &ProductIndex{
		log:     log.With("service", "QdrantProductIndex"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	if err := s.verifyReady(ctx); err != nil {
		return nil, err
	}
	log.Info("Qdrant product index selected",
		"url", s.baseURL,
		"collection", cfg.Collection,
		"vector_dim", s.cfg.VectorDim,
		"distance", s.distance,
	)
	return s, nil
}

// QueryProducts ranks up to numCandidates points against vec and returns the
// best k, highest score first.
func (s *ProductIndex) QueryProducts(ctx context.Context, vec []float32, numCandidates, k int) ([]catalog.ProductHit, error) {
	const op = "query"
	if k <= 0 {
		return []catalog.ProductHit{}, nil
	}
	if len(vec) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if s.cfg.VectorDim > 0 && len(vec) != s.cfg.VectorDim {
		return nil, opErr(op, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", s.cfg.VectorDim, len(vec)), nil)
	}
	if numCandidates < k {
		numCandidates = k
	}

	req := map[string]any{
		"vector":       vec,
		"limit":        numCandidates,
		"with_payload": true,
		"with_vector":  false,
	}
	var items []searchItem
	if err := s.doJSON(ctx, op, http.MethodPost, s.collectionPath("/points/search"), req, &items); err != nil {
		return nil, err
	}

	hits := make([]catalog.ProductHit, 0, len(items))
	for _, it := range items {
		p := catalog.Product{
			Title:        it.Payload.Title,
			Promotion:    it.Payload.Promotion,
			Specs:        it.Payload.Specs,
			Price:        it.Payload.Price,
			ColorOptions: it.Payload.ColorOptions,
			URL:          it.Payload.URL,
		}
		hits = append(hits, p.Hit(s.normalizeScore(it.Score)))
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// UpsertProducts writes products keyed by a deterministic id derived from the title.
func (s *ProductIndex) UpsertProducts(ctx context.Context, products []catalog.Product) error {
	const op = "upsert"
	if len(products) == 0 {
		return nil
	}
	points := make([]map[string]any, 0, len(products))
	for _, p := range products {
		title := strings.TrimSpace(p.Title)
		if title == "" {
			return opErr(op, OperationErrorValidation, "product title is required", nil)
		}
		if len(p.Embedding) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("product %q has no embedding", title), nil)
		}
		if s.cfg.VectorDim > 0 && len(p.Embedding) != s.cfg.VectorDim {
			return opErr(op, OperationErrorValidation,
				fmt.Sprintf("product %q dimension mismatch: expected=%d got=%d", title, s.cfg.VectorDim, len(p.Embedding)), nil)
		}
		points = append(points, map[string]any{
			"id":     PointID(title),
			"vector": p.Embedding,
			"payload": productPayload{
				Title:        p.Title,
				Promotion:    p.Promotion,
				Specs:        p.Specs,
				Price:        p.Price,
				ColorOptions: p.ColorOptions,
				URL:          p.URL,
			},
		})
	}
	return s.doJSON(ctx, op, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func PointID(title string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(strings.TrimSpace(title))).String()
}

func (s *ProductIndex) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"
	ctx = ctxutil.Default(ctx)

	readyReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	readyResp, err := s.http.Do(readyReq)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = readyResp.Body.Close()
	if readyResp.StatusCode < 200 || readyResp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: readyResp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", readyResp.StatusCode),
		}
	}

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err = s.doJSON(ctx, op, http.MethodGet, s.collectionPath(""), nil, &info)
	var oe *OperationError
	if errors.As(err, &oe) && oe.StatusCode == http.StatusNotFound && s.cfg.CreateIfMissing {
		return s.createCollection(ctx)
	}
	if err != nil {
		return err
	}

	size := info.Config.Params.Vectors.Size
	switch {
	case s.cfg.VectorDim == 0:
		s.cfg.VectorDim = size
	case size != 0 && size != s.cfg.VectorDim:
		return &OperationError{
			Code:      OperationErrorValidation,
			Operation: op,
			Message: fmt.Sprintf("qdrant collection %q vector size mismatch: expected=%d actual=%d",
				s.cfg.Collection, s.cfg.VectorDim, size),
		}
	}
	s.distance = strings.TrimSpace(info.Config.Params.Vectors.Distance)
	return nil
}

func (s *ProductIndex) createCollection(ctx context.Context) error {
	const op = "create_collection"
	if s.cfg.VectorDim <= 0 {
		return opErr(op, OperationErrorValidation, "vector dimension required to create collection", nil)
	}
	req := map[string]any{
		"vectors": map[string]any{"size": s.cfg.VectorDim, "distance": "Cosine"},
	}
	if err := s.doJSON(ctx, op, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return err
	}
	s.distance = "Cosine"
	s.log.Info("qdrant collection created", "collection", s.cfg.Collection, "vector_dim", s.cfg.VectorDim)
	return nil
}

func (s *ProductIndex) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if msg := envelopeStatusError(env.Status); msg != "" {
		return &OperationError{Code: OperationErrorQueryFailed, Operation: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func envelopeStatusError(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if strings.EqualFold(asString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", asString)
	}
	var asObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && strings.TrimSpace(asObject.Error) != "" {
		return strings.TrimSpace(asObject.Error)
	}
	return "qdrant status=" + status
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func (s *ProductIndex) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

// normalizeScore maps distance metrics to "higher is closer".
func (s *ProductIndex) normalizeScore(score float64) float64 {
	switch strings.ToLower(s.distance) {
	case "euclid", "manhattan":
		if score < 0 {
			score = -score
		}
		return 1.0 / (1.0 + score)
	default:
		return score
	}
}
