package ml_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	config "github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/jitter"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// EmbedTextFullMethod — метод ML-сервиса. Запрос {"text": string},
// ответ {"vector": [number], "model_version": string}.
const EmbedTextFullMethod = "/ml.v1.MachineLearningService/EmbedText"

var errMalformedResponse = errors.New("malformed embedding response")

// MLService клиент для взаимодействия с внешним ML-сервисом
type MLService struct {
	conn          grpc.ClientConnInterface
	maxConcurrent int
	maxRetries    int
	timeout       time.Duration
	baseBackoff   time.Duration
	maxBackoff    time.Duration
	logger        logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, cfg *config.MLServiceCfg, logger logger.Logger) *MLService {
	return &MLService{
		conn:          conn,
		maxConcurrent: max(cfg.MaxConcurrent, 1),
		maxRetries:    max(cfg.MaxRetries, 1),
		timeout:       cfg.Timeout,
		baseBackoff:   1 * time.Second,
		maxBackoff:    30 * time.Second,
		logger:        logger,
	}
}

// Embed выполняет векторизацию текстов с retry-логикой и экспоненциальной задержкой.
// Повторяются только временные ошибки сервиса.
func (m *MLService) Embed(ctx context.Context, req *usecase.EmbedReq) ([]usecase.EmbedRes, error) {
	const op = "MLService.Embed"

	if len(req.Texts) == 0 {
		return []usecase.EmbedRes{}, nil
	}

	for attempt := 0; ; attempt++ {
		vectors, err := m.embedBatch(ctx, req.Texts)
		if err == nil {
			return vectors, nil
		}

		if !isRetryable(err) || attempt == m.maxRetries-1 {
			return nil, e.Wrap(op, fmt.Errorf("attempt %d of %d: %w", attempt+1, m.maxRetries, err))
		}

		sleepTime := jitter.ExponentialBackoff(m.baseBackoff, m.maxBackoff, attempt, jitter.DefaultJitter)

		m.logger.Warnf("vectorization failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Wrap(op, err)
		}
	}
}

// embedBatch отправляет тексты на векторизацию параллельно с ограничением конкурентности.
// Порядок результатов совпадает с порядком текстов.
func (m *MLService) embedBatch(ctx context.Context, texts []string) ([]usecase.EmbedRes, error) {
	vectors := make([]usecase.EmbedRes, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent)
	for i, text := range texts {
		g.Go(func() error {
			res, err := m.embedText(gctx, text)
			if err != nil {
				return err
			}
			vectors[i] = *res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

func (m *MLService) embedText(ctx context.Context, text string) (*usecase.EmbedRes, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return nil, err
	}

	resp := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, EmbedTextFullMethod, req, resp); err != nil {
		return nil, err
	}

	return decodeEmbedding(resp)
}

func decodeEmbedding(resp *structpb.Struct) (*usecase.EmbedRes, error) {
	list := resp.GetFields()["vector"].GetListValue()
	if list == nil || len(list.GetValues()) == 0 {
		return nil, errMalformedResponse
	}

	vector := make([]float32, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, errMalformedResponse
		}
		vector = append(vector, float32(n.NumberValue))
	}

	return usecase.NewEmbedRes(vector, resp.GetFields()["model_version"].GetStringValue()), nil
}

// isRetryable проверяет, имеет ли смысл повторить запрос к ML-сервису
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
