package impact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	awsSession "github.com/aws/aws-sdk-go/aws/session"
	awsS3 "github.com/aws/aws-sdk-go/service/s3"
)

// SnapshotStore archives exported trees and returns where each one was written
type SnapshotStore interface {
	Save(ctx context.Context, snapshot Snapshot) (string, error)
}

// SnapshotConfig locates and authenticates against the snapshot bucket. EndpointOrigin
// is a bare host such as "minio.internal:9000"; requests go over HTTPS.
type SnapshotConfig struct {
	AccessKeyID    string
	SecretKey      string
	EndpointOrigin string
	RegionName     string
	BucketName     string
}

type objectPutter interface {
	PutObjectWithContext(ctx aws.Context, input *awsS3.PutObjectInput, opts ...request.Option) (*awsS3.PutObjectOutput, error)
}

// BucketStore writes each snapshot as a private JSON object in an S3-compatible bucket,
// addressed path-style so that MinIO and similar servers work without DNS setup
type BucketStore struct {
	objects  objectPutter
	bucket   string
	endpoint string
}

var _ SnapshotStore = (*BucketStore)(nil)

func NewSnapshotStore(cfg SnapshotConfig) (*BucketStore, error) {
	endpoint := "https://" + strings.TrimSuffix(cfg.EndpointOrigin, "/")
	sess, err := awsSession.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretKey, ""),
		Endpoint:         aws.String(endpoint),
		Region:           aws.String(cfg.RegionName),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize snapshot bucket session: %w", err)
	}
	return &BucketStore{objects: awsS3.New(sess), bucket: cfg.BucketName, endpoint: endpoint}, nil
}

func (b *BucketStore) Save(ctx context.Context, snapshot Snapshot) (string, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}
	key := SnapshotKey(snapshot.ChurchID, snapshot.ExportedAt)
	_, err = b.objects.PutObjectWithContext(ctx, &awsS3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ACL:         aws.String(awsS3.ObjectCannedACLPrivate),
		ContentType: aws.String("application/json"),
		Metadata: map[string]*string{
			"Church-Id":   aws.String(snapshot.ChurchID),
			"Total-Nodes": aws.String(strconv.Itoa(snapshot.TotalNodes)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, key), nil
}

// Snapshot is the archived form of a fetched tree
type Snapshot struct {
	ChurchID   string     `json:"church_id"`
	TotalNodes int        `json:"total_nodes"`
	ExportedAt time.Time  `json:"exported_at"`
	Tree       []TreeNode `json:"tree"`
}

// SnapshotKey returns the object key under which a church's tree is archived
func SnapshotKey(churchID string, at time.Time) string {
	return fmt.Sprintf("chaine-impact/%s/%s.json", churchID, at.UTC().Format("20060102T150405Z"))
}

// ExportSnapshot archives the viewer's current tree, returning the location reported by
// the store. It fails with ErrNoData if no tree is loaded.
func ExportSnapshot(ctx context.Context, v *Viewer, store SnapshotStore, at time.Time) (string, error) {
	view := v.Snapshot()
	tree := v.Tree()
	if len(tree) == 0 {
		return "", ErrNoData
	}
	return store.Save(ctx, Snapshot{
		ChurchID:   view.ChurchID,
		TotalNodes: view.TotalNodes,
		ExportedAt: at.UTC(),
		Tree:       tree,
	})
}
