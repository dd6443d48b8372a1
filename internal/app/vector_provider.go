package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"

	"github.com/hedspi/phone-assistant/internal/data/repos"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/observability"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/qdrant"
)

type VectorProvider string

const (
	VectorProviderLocal  VectorProvider = "local"
	VectorProviderQdrant VectorProvider = "qdrant"
)

// ProductStore is a searchable index that also accepts ingestion.
type ProductStore interface {
	retrieval.ProductIndex
	retrieval.ProductWriter
}

var (
	newQdrantIndex = func(ctx context.Context, log *logger.Logger, cfg qdrant.Config) (ProductStore, error) {
		return qdrant.NewProductIndex(ctx, log, cfg)
	}
	resolveQdrantConfig = qdrant.ResolveConfigFromEnv
	newLocalIndex       = func(ctx context.Context, log *logger.Logger, repo repos.ProductRepo) (ProductStore, error) {
		return retrieval.NewLocalIndex(ctx, log, repo)
	}
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed  VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
	VectorProviderBootstrapErrorMissingCatalog      VectorProviderBootstrapErrorCode = "missing_catalog_db"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveProductStore selects the product index named by cfg.VectorProvider.
func resolveProductStore(ctx context.Context, log *logger.Logger, cfg Config, repo repos.ProductRepo, metrics *observability.Metrics) (ProductStore, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.VectorProvider))
	if provider == "" {
		provider = string(VectorProviderLocal)
	}

	var (
		store ProductStore
		err   error
	)
	switch provider {
	case string(VectorProviderQdrant):
		qcfg, cfgErr := resolveQdrantConfig()
		if cfgErr != nil {
			err = cfgErr
			break
		}
		log.Info("Selecting vector store provider",
			"provider", provider,
			"qdrant_url", qcfg.URL,
			"qdrant_collection", qcfg.Collection,
			"qdrant_vector_dim", qcfg.VectorDim,
		)
		store, err = newQdrantIndex(ctx, log, qcfg)

	case string(VectorProviderLocal):
		log.Info("Selecting vector store provider", "provider", provider)
		if repo == nil {
			err = &VectorProviderBootstrapError{
				Code:     VectorProviderBootstrapErrorMissingCatalog,
				Provider: provider,
				Cause:    errors.New("local provider needs the catalog database"),
			}
			break
		}
		store, err = newLocalIndex(ctx, log, repo)

	default:
		err = &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
	}

	if err != nil {
		classified := classifyVectorProviderBootstrapError(provider, err)
		log.Error("Vector store provider bootstrap failed",
			"provider", provider,
			"error_code", vectorProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return instrumentProductStore(provider, store, metrics), nil
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	var already *VectorProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var urlErr *neturl.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
