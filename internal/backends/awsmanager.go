package backends

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/pkg/secret"
)

// SecretsManagerAPI defines the interface for AWS Secrets Manager operations.
// This allows for mocking in tests.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// RemoteConfig carries the settings needed to reach the remote manager.
// The struct being present at all is what "remote configured" means; absence
// is a normal state, not an error.
type RemoteConfig struct {
	// SecretName is the remote entry holding the session secret.
	// Defaults to DefaultSecretName.
	SecretName string `yaml:"secret_name"`

	// Region selects the AWS region. Defaults to us-east-1.
	Region string `yaml:"region"`

	// Endpoint optionally points at a custom endpoint (LocalStack, testing).
	Endpoint string `yaml:"endpoint"`

	// Static credentials for LocalStack/testing. When empty the default AWS
	// credential chain applies.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// RemoteBackend resolves the session secret from AWS Secrets Manager.
type RemoteBackend struct {
	secretName string
	region     string
	client     SecretsManagerAPI
}

// RemoteOption is a functional option for configuring the remote backend.
type RemoteOption func(*RemoteBackend)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerAPI) RemoteOption {
	return func(b *RemoteBackend) {
		b.client = client
	}
}

// NewRemoteBackend creates a remote backend from configuration. A client
// construction failure here is what the resolver later reports as a
// configuration error: a remote that was requested but is unusable must not
// silently fall through to file storage.
func NewRemoteBackend(cfg RemoteConfig, opts ...RemoteOption) (*RemoteBackend, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	secretName := cfg.SecretName
	if secretName == "" {
		secretName = DefaultSecretName
	}

	b := &RemoteBackend{
		secretName: secretName,
		region:     region,
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.client == nil {
		var configOpts []func(*config.LoadOptions) error
		configOpts = append(configOpts, config.WithRegion(region))

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}

		awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		b.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return b, nil
}

// SecretName returns the remote entry name this backend consults.
func (b *RemoteBackend) SecretName() string {
	return b.secretName
}

// Lookup fetches the named secret. Returns ErrSecretNotFound when the entry
// does not exist remotely; any other failure is a RemoteBackendError, which
// the resolver treats as fatal.
func (b *RemoteBackend) Lookup(ctx context.Context) (secret.Secret, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: &b.secretName,
	}

	result, err := b.client.GetSecretValue(ctx, input)
	if err != nil {
		if isNotFoundError(err) {
			return secret.Secret{}, ErrSecretNotFound
		}
		return secret.Secret{}, kserrors.RemoteBackendError{
			Operation: "get",
			Name:      b.secretName,
			Err:       err,
		}
	}

	var value string
	switch {
	case result.SecretString != nil:
		value = *result.SecretString
	case result.SecretBinary != nil:
		value = string(result.SecretBinary)
	default:
		return secret.Secret{}, kserrors.RemoteBackendError{
			Operation: "get",
			Name:      b.secretName,
			Err:       fmt.Errorf("secret has no value"),
		}
	}

	return secret.Secret{Value: value, Origin: secret.OriginRemoteManager}, nil
}

// Create stores a newly generated secret under the configured name.
func (b *RemoteBackend) Create(ctx context.Context, s secret.Secret) error {
	description := "Session cookie signing secret (managed by keyshift)"
	input := &secretsmanager.CreateSecretInput{
		Name:         &b.secretName,
		SecretString: &s.Value,
		Description:  &description,
	}

	if _, err := b.client.CreateSecret(ctx, input); err != nil {
		return kserrors.RemoteBackendError{
			Operation: "create",
			Name:      b.secretName,
			Err:       err,
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}
