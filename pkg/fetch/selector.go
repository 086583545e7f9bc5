package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"

	"github.com/glorpus-work/portalfetch/internal/logger"
	"github.com/glorpus-work/portalfetch/pkg/transport"
)

// Candidate is one possible source for a manifest entry, tagged by the
// priority token its URL matched.
type Candidate struct {
	URL    string
	Scheme string
}

// EnvironmentSensor reports whether the process runs inside a cloud instance,
// which flips the default endpoint ordering towards object storage.
type EnvironmentSensor interface {
	InsideCloud(ctx context.Context) bool
}

// Default orderings applied when the caller supplies no priority list.
var (
	cloudDefaultPriority = []string{"s3", "http", "ftp"}
	plainDefaultPriority = []string{"http", "ftp", "s3"}
)

// Selector ranks an entry's candidate URLs by protocol scheme.
type Selector struct {
	// Sensor decides the default ordering when the priority list is empty.
	// A nil sensor behaves as "not in a cloud environment".
	Sensor EnvironmentSensor

	// Normalizer optionally rewrites a matched URL before inclusion. It
	// exists for dataset-specific canonicalization quirks and is nil by
	// default.
	Normalizer func(url string) string
}

// Select returns the entry's URLs filtered and ordered by the priority list.
// An empty priority list falls back to an environment-derived default. URLs
// of the same scheme keep their original relative order. An empty result
// means the entry has no valid endpoint.
func (s *Selector) Select(ctx context.Context, urls []string, priority string) []Candidate {
	tokens := parsePriority(priority)
	if len(tokens) == 0 {
		tokens = s.defaultPriority(ctx)
	}

	var out []Candidate
	for _, token := range tokens {
		for _, u := range urls {
			scheme, err := transport.SchemeOf(u)
			if err != nil || scheme != token {
				continue
			}
			if s.Normalizer != nil {
				u = s.Normalizer(u)
			}
			out = append(out, Candidate{URL: u, Scheme: token})
		}
	}
	return out
}

func (s *Selector) defaultPriority(ctx context.Context) []string {
	if s.Sensor != nil && s.Sensor.InsideCloud(ctx) {
		logger.Debug("instance metadata reachable, preferring object storage")
		return cloudDefaultPriority
	}
	return plainDefaultPriority
}

func parsePriority(priority string) []string {
	var tokens []string
	for _, token := range strings.Split(priority, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// IMDSSensor probes the EC2 instance metadata service with a bounded-latency
// request: a short per-attempt timeout and a single retry.
type IMDSSensor struct {
	client  *imds.Client
	timeout time.Duration
}

// NewIMDSSensor creates the metadata probe used for priority defaulting.
func NewIMDSSensor() *IMDSSensor {
	return &IMDSSensor{
		client:  imds.New(imds.Options{}),
		timeout: 500 * time.Millisecond,
	}
}

// InsideCloud implements EnvironmentSensor.
func (s *IMDSSensor) InsideCloud(ctx context.Context) bool {
	for attempt := 0; attempt < 2; attempt++ {
		probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
		_, err := s.client.GetMetadata(probeCtx, &imds.GetMetadataInput{Path: "instance-id"})
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}

// DemoBucketNormalizer rewrites the historical demo dataset's object-storage
// URLs into the canonical bucket/key shape used on S3. It matches only URLs
// carrying the HMDEMO marker and leaves everything else untouched. Wire it
// into Selector.Normalizer only when fetching that dataset.
func DemoBucketNormalizer(url string) string {
	if !strings.HasPrefix(url, "s3://") || !strings.Contains(url, "HMDEMO") {
		return url
	}
	elements := strings.Split(url, "/")
	if len(elements) < 6 {
		return url
	}
	return "s3://" + elements[2] + "/DEMO/" + elements[4] + "/" +
		strings.Join(elements[len(elements)-4:], "/")
}
