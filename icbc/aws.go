package icbc

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/meteocima/virtual-server/vpath"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AWSSource downloads GFS files from the NOAA big data
// bucket. The bucket is public, requests are anonymous.
type AWSSource struct {
	Bucket string
	Log    *zap.SugaredLogger

	client *s3.Client
}

// NewAWSSource ...
func NewAWSSource(ctx context.Context, bucket, region string, log *zap.SugaredLogger) (*AWSSource, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws configuration")
	}
	return &AWSSource{
		Bucket: bucket,
		Log:    log,
		client: s3.NewFromConfig(cfg),
	}, nil
}

// Name ...
func (s *AWSSource) Name() string { return "aws" }

func awsFileName(cycle time.Time, leadHr int) string {
	return fmt.Sprintf("gfs.t%02dz.pgrb2.0p25.f%03d", cycle.Hour(), leadHr)
}

func awsKey(cycle time.Time, leadHr int) string {
	return fmt.Sprintf("gfs.%s/%02d/atmos/%s",
		cycle.Format("20060102"), cycle.Hour(), awsFileName(cycle, leadHr))
}

// Get downloads one forecast file into dir.
func (s *AWSSource) Get(ctx context.Context, dir vpath.VirtualPath, cycle time.Time, leadHr int) error {
	name := awsFileName(cycle, leadHr)
	target := dir.Join(name)
	if _, err := os.Stat(target.Path); err == nil {
		s.Log.Debugf("%s already downloaded", name)
		return nil
	}

	key := awsKey(cycle, leadHr)
	s.Log.Infof("downloading s3://%s/%s", s.Bucket, key)
	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "downloading s3://%s/%s", s.Bucket, key)
	}
	defer object.Body.Close()

	file, err := os.Create(target.Path)
	if err != nil {
		return errors.Wrapf(err, "creating `%s`", target.String())
	}
	defer file.Close()

	if _, err := io.Copy(file, object.Body); err != nil {
		os.Remove(target.Path)
		return errors.Wrapf(err, "writing `%s`", target.String())
	}
	return nil
}
