package s3

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// UploadMetadata is the mutable upload metadata handed to a MetadataHook
// before a put is sent.
type UploadMetadata struct {
	// ContentType sets the object's Content-Type header.
	ContentType string
	// UserMetadata becomes x-amz-meta-* headers on the stored object.
	UserMetadata map[string]string
}

// MetadataHook mutates upload metadata in place before each put. The hook
// sees only the metadata, nothing of the store's internals.
type MetadataHook func(m *UploadMetadata)

// supportedRegions is the fixed set of accepted region selectors.
// Construction fails fast on anything else.
var supportedRegions = map[string]struct{}{
	"af-south-1":     {},
	"ap-east-1":      {},
	"ap-northeast-1": {},
	"ap-northeast-2": {},
	"ap-northeast-3": {},
	"ap-south-1":     {},
	"ap-south-2":     {},
	"ap-southeast-1": {},
	"ap-southeast-2": {},
	"ap-southeast-3": {},
	"ap-southeast-4": {},
	"ca-central-1":   {},
	"ca-west-1":      {},
	"eu-central-1":   {},
	"eu-central-2":   {},
	"eu-north-1":     {},
	"eu-south-1":     {},
	"eu-south-2":     {},
	"eu-west-1":      {},
	"eu-west-2":      {},
	"eu-west-3":      {},
	"il-central-1":   {},
	"me-central-1":   {},
	"me-south-1":     {},
	"sa-east-1":      {},
	"us-east-1":      {},
	"us-east-2":      {},
	"us-west-1":      {},
	"us-west-2":      {},
}

// supportedSSE is the fixed set of accepted server-side-encryption selectors.
var supportedSSE = map[types.ServerSideEncryption]struct{}{
	types.ServerSideEncryptionAes256: {},
}

type options struct {
	prefix    string
	region    string
	sse       types.ServerSideEncryption
	creds     aws.CredentialsProvider
	hook      MetadataHook
	logger    *slog.Logger
	endpoint  string
	pathStyle bool
}

// Option configures store construction.
type Option func(*options)

// WithPrefix keys all objects under the given path prefix. The prefix is
// normalized: surrounding whitespace and separators are trimmed and a single
// trailing separator appended; an all-noise prefix means no prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithRegion pins the store to a region. The value is validated against the
// supported set at construction. When omitted the environment decides.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithSSE applies server-side encryption to uploaded blocks. Only AES256 is
// supported; construction fails on any other selector.
func WithSSE(algorithm types.ServerSideEncryption) Option {
	return func(o *options) {
		o.sse = algorithm
	}
}

// WithStaticCredentials authenticates with an access key pair.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(o *options) {
		o.creds = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}
}

// WithSessionCredentials authenticates with a temporary session triple.
func WithSessionCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *options) {
		o.creds = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
	}
}

// WithCredentialsProvider authenticates through a caller-supplied provider.
func WithCredentialsProvider(provider aws.CredentialsProvider) Option {
	return func(o *options) {
		o.creds = provider
	}
}

// WithMetadataHook installs a hook invoked with the upload metadata before
// each put.
func WithMetadataHook(hook MetadataHook) Option {
	return func(o *options) {
		o.hook = hook
	}
}

// WithLogger sets the logger used for listing diagnostics. Defaults to a
// logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEndpoint points the client at a custom S3-compatible endpoint,
// e.g. a MinIO deployment or a local test server.
func WithEndpoint(url string) Option {
	return func(o *options) {
		o.endpoint = url
	}
}

// WithPathStyle forces path-style addressing, required by most
// S3-compatible endpoints.
func WithPathStyle() Option {
	return func(o *options) {
		o.pathStyle = true
	}
}

func (o *options) validate() error {
	if o.region != "" {
		if _, ok := supportedRegions[o.region]; !ok {
			return fmt.Errorf("unsupported region %q", o.region)
		}
	}

	if o.sse != "" {
		if _, ok := supportedSSE[o.sse]; !ok {
			supported := make([]string, 0, len(supportedSSE))
			for alg := range supportedSSE {
				supported = append(supported, string(alg))
			}
			sort.Strings(supported)
			return fmt.Errorf("unsupported server-side encryption %q, supported: %s",
				o.sse, strings.Join(supported, ", "))
		}
	}

	return nil
}
