// Package fakes provides in-memory fakes for external collaborators used in
// keyshift tests.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeSecretsManagerClient is an in-memory implementation of the subset of
// AWS Secrets Manager used by the remote backend (GetSecretValue,
// CreateSecret).
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their string values.
	Secrets map[string]string

	// Errors maps secret names to errors returned from GetSecretValue.
	Errors map[string]error

	// CreateErr, when set, is returned from every CreateSecret call.
	CreateErr error

	// FailIfCalled makes every operation return an error. Used by precedence
	// tests: a backend that must never be consulted.
	FailIfCalled bool

	// GetCalls and CreateCalls count operations for assertion.
	GetCalls    int
	CreateCalls int
}

// NewFakeSecretsManagerClient creates an empty fake client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecretString seeds the fake with a named secret value.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// GetSecretValue implements the Secrets Manager API subset.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailIfCalled {
		return nil, fmt.Errorf("remote manager consulted but must not be: GetSecretValue(%s)", aws.ToString(params.SecretId))
	}
	f.GetCalls++

	name := aws.ToString(params.SecretId)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}
	value, exists := f.Secrets[name]
	if !exists {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
		}
	}

	return &secretsmanager.GetSecretValueOutput{
		Name:          aws.String(name),
		SecretString:  aws.String(value),
		VersionId:     aws.String("v1-fake"),
		VersionStages: []string{"AWSCURRENT"},
	}, nil
}

// CreateSecret implements the Secrets Manager API subset.
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailIfCalled {
		return nil, fmt.Errorf("remote manager consulted but must not be: CreateSecret(%s)", aws.ToString(params.Name))
	}
	f.CreateCalls++

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	name := aws.ToString(params.Name)
	if _, exists := f.Secrets[name]; exists {
		return nil, &types.ResourceExistsException{
			Message: aws.String(fmt.Sprintf("The operation failed because the secret %s already exists", name)),
		}
	}
	f.Secrets[name] = aws.ToString(params.SecretString)

	return &secretsmanager.CreateSecretOutput{
		Name:      aws.String(name),
		VersionId: aws.String("v1-fake"),
	}, nil
}
