package backup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strings"
)

// s3Config carries the credentials and addressing for snapshot uploads.
type s3Config struct {
	BucketURL    string
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
}

func s3ConfigFrom(cfg Config) s3Config {
	return s3Config{
		BucketURL:    cfg.BucketURL,
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		SessionToken: cfg.S3SessionToken,
		UseSSL:       cfg.S3UseSSL,
	}
}

// cliUploader ships snapshots with `aws s3 cp`. Driving the CLI keeps the
// binary free of a cloud SDK and still reaches any S3-compatible store
// through --endpoint-url.
type cliUploader struct {
	bucket string
	prefix string
	cfg    s3Config
}

func newCLIUploader(cfg s3Config) (*cliUploader, error) {
	bucket, prefix, err := splitBucketURL(cfg.BucketURL)
	if err != nil {
		return nil, err
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("backup: s3 access key and secret key are required")
	}
	if _, err := exec.LookPath("aws"); err != nil {
		return nil, fmt.Errorf("backup: aws cli not found in PATH: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	return &cliUploader{bucket: bucket, prefix: prefix, cfg: cfg}, nil
}

func (u *cliUploader) Upload(ctx context.Context, localPath string) error {
	key := path.Base(localPath)
	if u.prefix != "" {
		key = path.Join(u.prefix, key)
	}

	args := []string{
		"s3", "cp", localPath, "s3://" + u.bucket + "/" + key,
		"--region", u.cfg.Region,
		"--only-show-errors",
	}
	if ep := u.endpointURL(); ep != "" {
		args = append(args, "--endpoint-url", ep)
	}

	cmd := exec.CommandContext(ctx, "aws", args...)
	cmd.Env = append(os.Environ(),
		"AWS_ACCESS_KEY_ID="+u.cfg.AccessKey,
		"AWS_SECRET_ACCESS_KEY="+u.cfg.SecretKey,
		"AWS_DEFAULT_REGION="+u.cfg.Region,
	)
	if u.cfg.SessionToken != "" {
		cmd.Env = append(cmd.Env, "AWS_SESSION_TOKEN="+u.cfg.SessionToken)
	}

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("aws s3 cp: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (u *cliUploader) endpointURL() string {
	ep := strings.TrimSpace(u.cfg.Endpoint)
	switch {
	case ep == "":
		return ""
	case strings.Contains(ep, "://"):
		return ep
	case u.cfg.UseSSL:
		return "https://" + ep
	default:
		return "http://" + ep
	}
}

// splitBucketURL takes s3://bucket[/prefix] apart.
func splitBucketURL(raw string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "s3://")
	if !ok {
		return "", "", fmt.Errorf("backup: bucket url %q must start with s3://", raw)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("backup: bucket url %q has no bucket name", raw)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}
