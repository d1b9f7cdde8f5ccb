package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"foodgram-backend/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// AllowImage lists the content types accepted for image uploads.
var AllowImage = []string{"image/png", "image/jpeg", "image/jpg", "image/webp"}

type (
	AwsS3 interface {
		// UploadBase64 decodes a base64 payload (optionally a data URI) and
		// stores it under dir/fileName.<ext>, returning the object key.
		UploadBase64(fileName string, payload string, dir string) (string, error)
		DeleteFile(objectKey string) error
		GetPublicLinkKey(objectKey string) string
		GetObjectKeyFromLink(link string) string
	}

	awsS3 struct {
		client *s3.Client
		bucket string
		region string
	}
)

func NewAwsS3() AwsS3 {
	region := utils.GetConfig("AWS_S3_REGION")
	cfg, err := awsconfig.LoadDefaultConfig(
		context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			utils.GetConfig("AWS_ACCESS_KEY"),
			utils.GetConfig("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return &awsS3{bucket: utils.GetConfig("AWS_S3_BUCKET"), region: region}
	}

	return &awsS3{
		client: s3.NewFromConfig(cfg),
		bucket: utils.GetConfig("AWS_S3_BUCKET"),
		region: region,
	}
}

// decodeBase64Image accepts either a raw base64 string or a data URI of the
// form "data:image/png;base64,...." and returns the bytes and content type.
func decodeBase64Image(payload string) ([]byte, string, error) {
	contentType := "image/png"
	raw := payload

	if strings.HasPrefix(payload, "data:") {
		parts := strings.SplitN(payload, ",", 2)
		if len(parts) != 2 {
			return nil, "", fmt.Errorf("malformed data URI")
		}
		meta := strings.TrimPrefix(parts[0], "data:")
		contentType = strings.SplitN(meta, ";", 2)[0]
		raw = parts[1]
	}

	allowed := false
	for _, t := range AllowImage {
		if t == contentType {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, "", fmt.Errorf("content type %s not allowed", contentType)
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

func (a *awsS3) UploadBase64(fileName string, payload string, dir string) (string, error) {
	data, contentType, err := decodeBase64Image(payload)
	if err != nil {
		return "", err
	}
	if a.client == nil {
		return "", fmt.Errorf("s3 client not configured")
	}

	objectKey := fmt.Sprintf("%s/%s.%s", dir, fileName, extensionFor(contentType))
	_, err = a.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func (a *awsS3) DeleteFile(objectKey string) error {
	if a.client == nil {
		return fmt.Errorf("s3 client not configured")
	}
	_, err := a.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	})
	return err
}

func (a *awsS3) GetPublicLinkKey(objectKey string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.region, objectKey)
}

func (a *awsS3) GetObjectKeyFromLink(link string) string {
	prefix := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", a.bucket, a.region)
	if !strings.HasPrefix(link, prefix) {
		return ""
	}
	return strings.TrimPrefix(link, prefix)
}
