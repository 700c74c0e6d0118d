package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

func testSigner() *Signer {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	return NewFromConfig(cfg, "rescue-media", time.Minute)
}

func TestUploadURL(t *testing.T) {
	s := testSigner()
	up, err := s.UploadURL(context.Background(), "u1", PurposePost, "../../bread loaf.jpg", "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(up.Key, "posts/u1/") || !strings.HasSuffix(up.Key, "-bread_loaf.jpg") {
		t.Errorf("key = %q", up.Key)
	}
	if !strings.Contains(up.URL, "rescue-media") || !strings.Contains(up.URL, "X-Amz-Signature=") {
		t.Errorf("url = %q, want a presigned bucket URL", up.URL)
	}
	if time.Until(up.ExpiresAt) > time.Minute || time.Until(up.ExpiresAt) <= 0 {
		t.Errorf("expires at %v", up.ExpiresAt)
	}
}

func TestUploadURLRejects(t *testing.T) {
	s := testSigner()
	ctx := context.Background()
	if _, err := s.UploadURL(ctx, "u1", PurposeAvatar, "a.exe", "application/octet-stream"); !errors.Is(err, ErrContentType) {
		t.Errorf("err = %v, want ErrContentType", err)
	}
	if _, err := s.UploadURL(ctx, "u1", Purpose("docs"), "a.png", "image/png"); err == nil {
		t.Error("expected error for unknown purpose")
	}
}

func TestReadURL(t *testing.T) {
	url, err := testSigner().ReadURL(context.Background(), "avatars/u1/x.png")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(url, "avatars/u1/x.png") {
		t.Errorf("url = %q", url)
	}
}

func TestNilSignerDisabled(t *testing.T) {
	var s *Signer
	if _, err := s.UploadURL(context.Background(), "u", PurposePost, "a.png", "image/png"); !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
	if _, err := New(context.Background(), "", "", 0); !errors.Is(err, ErrDisabled) {
		t.Errorf("New without bucket err = %v, want ErrDisabled", err)
	}
}
