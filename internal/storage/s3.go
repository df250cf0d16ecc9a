// Package storage uploads synthesized audio artifacts to per-tenant object
// storage so the channel provider can fetch them by URL.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/HugoGarcez/agentpromp-sub000/internal/models"
)

// Manager caches one S3 client per tenant. Every tenant brings its own
// bucket and credentials.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]*s3.Client
	configs map[string]models.S3Settings
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*s3.Client),
		configs: make(map[string]models.S3Settings),
	}
}

func (m *Manager) clientFor(companyID string, settings models.S3Settings) (*s3.Client, error) {
	m.mu.RLock()
	client, ok := m.clients[companyID]
	cached := m.configs[companyID]
	m.mu.RUnlock()
	if ok && cached == settings {
		return client, nil
	}

	if settings.AccessKey == "" || settings.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials missing for company %s", companyID)
	}

	cfg := aws.Config{
		Region:      settings.Region,
		Credentials: credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, ""),
	}
	if settings.Endpoint != "" {
		endpoint := settings.Endpoint
		cfg.EndpointResolverWithOptions = aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{URL: endpoint, HostnameImmutable: settings.PathStyle}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
	}

	// Buckets with dots break virtual-hosted TLS, force path-style for them.
	usePathStyle := settings.PathStyle || strings.Contains(settings.Bucket, ".")
	client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})

	m.mu.Lock()
	m.clients[companyID] = client
	m.configs[companyID] = settings
	m.mu.Unlock()

	log.Info().
		Str("companyID", companyID).
		Str("bucket", settings.Bucket).
		Str("region", settings.Region).
		Msg("Storage client initialized")
	return client, nil
}

// UploadAudio stores one synthesized reply and returns its public URL.
func (m *Manager) UploadAudio(ctx context.Context, companyID string, settings models.S3Settings, remoteJID, messageID string, data []byte, mimeType string) (string, error) {
	if !settings.Enabled {
		return "", fmt.Errorf("storage not enabled for company %s", companyID)
	}

	client, err := m.clientFor(companyID, settings)
	if err != nil {
		return "", err
	}

	key := audioKey(companyID, remoteJID, messageID, mimeType)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(settings.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(mimeType),
		CacheControl: aws.String("public, max-age=3600"),
	})
	if err != nil {
		log.Error().Err(err).
			Str("companyID", companyID).
			Str("key", key).
			Str("bucket", settings.Bucket).
			Int("size", len(data)).
			Msg("Failed to upload audio artifact")
		return "", fmt.Errorf("failed to upload audio artifact: %w", err)
	}

	url := publicURL(settings, key)
	log.Info().
		Str("companyID", companyID).
		Str("key", key).
		Int("size", len(data)).
		Msg("Audio artifact uploaded")
	return url, nil
}

func audioKey(companyID, remoteJID, messageID, mimeType string) string {
	contact := strings.NewReplacer("@", "_", ":", "_").Replace(remoteJID)
	ext := ".mp3"
	if strings.Contains(mimeType, "ogg") || strings.Contains(mimeType, "opus") {
		ext = ".ogg"
	}
	now := time.Now()
	return fmt.Sprintf("companies/%s/outbox/%s/%s/audio/%s%s",
		companyID, contact, now.Format("2006/01/02"), messageID, ext)
}

func publicURL(settings models.S3Settings, key string) string {
	if settings.PublicURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(settings.PublicURL, "/"), settings.Bucket, key)
	}

	usePathStyle := settings.PathStyle || strings.Contains(settings.Bucket, ".")
	if settings.Endpoint != "" && !strings.Contains(settings.Endpoint, "amazonaws.com") {
		if usePathStyle {
			return fmt.Sprintf("%s/%s/%s", strings.TrimRight(settings.Endpoint, "/"), settings.Bucket, key)
		}
		host := strings.TrimPrefix(strings.TrimPrefix(settings.Endpoint, "https://"), "http://")
		return fmt.Sprintf("https://%s.%s/%s", settings.Bucket, host, key)
	}

	if usePathStyle {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", settings.Region, settings.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", settings.Bucket, settings.Region, key)
}
