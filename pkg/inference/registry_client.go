package inference

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/predictix/maintflow/pkg/agent"
	"github.com/predictix/maintflow/pkg/config"
	"github.com/predictix/maintflow/pkg/models"
)

// Registry RPC method names. The registry service exchanges schemaless
// structpb payloads, so no generated stubs are required on this side.
const (
	methodLoadModel  = "/maintflow.inference.v1.ModelRegistry/LoadModel"
	methodPredict    = "/maintflow.inference.v1.ModelRegistry/Predict"
	methodListModels = "/maintflow.inference.v1.ModelRegistry/ListModels"
)

// RegistryClient implements ModelLoader against the remote model registry
// service via gRPC. Loaded model descriptors are cached per sensor type
// until ClearCache.
type RegistryClient struct {
	cfg  *config.InferenceConfig
	conn *grpc.ClientConn

	mu    sync.Mutex
	cache map[models.SensorType]string // sensor type → model name
}

// NewRegistryClient creates a registry client. grpc.NewClient dials
// lazily; the first RPC establishes the connection.
func NewRegistryClient(cfg *config.InferenceConfig) (*RegistryClient, error) {
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to model registry at %s: %w", cfg.Addr, err)
	}
	return &RegistryClient{
		cfg:   cfg,
		conn:  conn,
		cache: make(map[models.SensorType]string),
	}, nil
}

// LoadModelForSensor resolves the serving model for the reading's sensor
// type, consulting the cache first.
func (c *RegistryClient) LoadModelForSensor(ctx context.Context, r models.SensorReading) (Model, Preprocessor, error) {
	c.mu.Lock()
	name, cached := c.cache[r.SensorType]
	c.mu.Unlock()

	if !cached {
		resp, err := c.invoke(ctx, methodLoadModel, map[string]any{
			"sensor_id":   r.SensorID,
			"sensor_type": string(r.SensorType),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: load model for sensor %s: %w", agent.ErrMLModel, r.SensorID, err)
		}
		name = resp.Fields["model_name"].GetStringValue()
		if name == "" {
			return nil, nil, fmt.Errorf("%w: registry returned no model for sensor type %s", agent.ErrMLModel, r.SensorType)
		}

		c.mu.Lock()
		c.cache[r.SensorType] = name
		c.mu.Unlock()
	}

	return &remoteModel{client: c, name: name}, valuePreprocessor{}, nil
}

// ListAvailableModels returns the registry's model names for a sensor type.
func (c *RegistryClient) ListAvailableModels(ctx context.Context, sensorType models.SensorType) ([]string, error) {
	resp, err := c.invoke(ctx, methodListModels, map[string]any{
		"sensor_type": string(sensorType),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list models for %s: %w", agent.ErrMLModel, sensorType, err)
	}

	var names []string
	for _, v := range resp.Fields["models"].GetListValue().GetValues() {
		if s := v.GetStringValue(); s != "" {
			names = append(names, s)
		}
	}
	return names, nil
}

// ClearCache drops all cached model descriptors.
func (c *RegistryClient) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[models.SensorType]string)
}

// HealthCheck probes the registry via the standard gRPC health service.
func (c *RegistryClient) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(c.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("%w: model registry health check: %w", agent.ErrServiceUnavailable, err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: model registry not serving: %s", agent.ErrServiceUnavailable, resp.GetStatus())
	}
	return nil
}

// Close releases the gRPC connection.
func (c *RegistryClient) Close() error {
	return c.conn.Close()
}

// invoke performs one schemaless RPC with the configured request timeout.
func (c *RegistryClient) invoke(ctx context.Context, method string, payload map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build request payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, fmt.Errorf("rpc %s failed: %w", method, err)
	}
	return resp, nil
}

// remoteModel proxies Predict calls to the registry's serving endpoint.
type remoteModel struct {
	client *RegistryClient
	name   string
}

// Name returns the registry model name.
func (m *remoteModel) Name() string { return m.name }

// Predict implements Model against the remote serving endpoint.
func (m *remoteModel) Predict(ctx context.Context, features []float64) (int, float64, error) {
	fs := make([]any, len(features))
	for i, f := range features {
		fs[i] = f
	}

	resp, err := m.client.invoke(ctx, methodPredict, map[string]any{
		"model_name": m.name,
		"features":   fs,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: predict with model %s: %w", agent.ErrMLModel, m.name, err)
	}

	prediction := int(resp.Fields["prediction"].GetNumberValue())
	score := resp.Fields["score"].GetNumberValue()
	if prediction != PredictionAnomaly && prediction != PredictionNormal {
		return 0, 0, fmt.Errorf("%w: model %s returned prediction %d, want -1 or +1",
			agent.ErrMLModel, m.name, prediction)
	}
	return prediction, score, nil
}
