package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hcadmin/internal/config"
	"hcadmin/internal/ids"
	"hcadmin/internal/media/sniffer"
	"hcadmin/internal/models"
	"hcadmin/internal/repository"
	"hcadmin/internal/storage"
)

const (
	PurposeAttachment = "attachment"
	PurposeAvatar     = "avatar"

	attachmentPageSize = 100
)

// ObjectStore is the part of storage.ObjectStore uploads need.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, meta storage.ObjectMeta) (int64, error)
	Remove(ctx context.Context, bucket, key string) error
}

type UploadInput struct {
	UserID       string
	Purpose      string
	FileName     string
	DeclaredType string
	Body         io.Reader
}

type UploadResult struct {
	Attachment models.Attachment
	URL        string
}

type UploadService struct {
	attachments AttachmentStore
	users       UserStore
	store       ObjectStore
	cfg         config.StorageConfig
	now         Clock
	log         zerolog.Logger
}

func NewUploadService(attachments AttachmentStore, users UserStore, store ObjectStore, cfg config.StorageConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		attachments: attachments,
		users:       users,
		store:       store,
		cfg:         cfg,
		now:         systemClock,
		log:         log,
	}
}

func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.Body == nil {
		return UploadResult{}, fmt.Errorf("%w: missing file", ErrInvalidInput)
	}
	purpose := input.Purpose
	if purpose == "" {
		purpose = PurposeAttachment
	}
	if purpose != PurposeAttachment && purpose != PurposeAvatar {
		return UploadResult{}, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, purpose)
	}

	data, err := s.readLimited(input.Body)
	if err != nil {
		return UploadResult{}, err
	}
	if len(data) == 0 {
		return UploadResult{}, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}

	head := data
	if len(head) > sniffer.HeadSize {
		head = head[:sniffer.HeadSize]
	}
	result, err := sniffer.DetectHead(head)
	if err != nil {
		return UploadResult{}, ErrUnsupportedMedia
	}
	if purpose == PurposeAvatar && !result.IsImage() {
		return UploadResult{}, fmt.Errorf("%w: avatar must be an image", ErrUnsupportedMedia)
	}

	declared := strings.ToLower(strings.TrimSpace(input.DeclaredType))
	if declared != "" && declared != result.MIME {
		return UploadResult{}, fmt.Errorf("%w: declared %s, actual %s", ErrUnsupportedMedia, declared, result.MIME)
	}

	now := s.now()
	attachmentID := ids.New()
	objectKey := buildObjectKey(now, attachmentID, result.Extension())
	fileName := cleanFileName(input.FileName)
	sum := sha256.Sum256(data)

	size, err := s.store.Put(ctx, s.cfg.BucketAttachments, objectKey, bytes.NewReader(data), int64(len(data)), storage.ObjectMeta{
		ContentType: result.MIME,
		OwnerID:     input.UserID,
		FileName:    fileName,
		SHA256:      sum[:],
	})
	if err != nil {
		return UploadResult{}, err
	}

	attachment := models.Attachment{
		ID:          attachmentID,
		UserID:      input.UserID,
		Bucket:      s.cfg.BucketAttachments,
		ObjectKey:   objectKey,
		FileName:    fileName,
		ContentType: result.MIME,
		Format:      string(result.Type),
		SizeBytes:   size,
		Checksum:    sum[:],
		CreatedAt:   now,
	}

	if err := s.attachments.Create(ctx, attachment); err != nil {
		// no row points at the object, so drop it
		if rmErr := s.store.Remove(ctx, attachment.Bucket, objectKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("object_key", objectKey).Msg("orphaned attachment object")
		}
		return UploadResult{}, fmt.Errorf("save metadata: %w", err)
	}

	if purpose == PurposeAvatar {
		if err := s.users.UpdateAvatar(ctx, input.UserID, attachment.ID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return UploadResult{}, ErrUserNotFound
			}
			return UploadResult{}, fmt.Errorf("set avatar: %w", err)
		}
	}

	s.log.Info().
		Str("attachment_id", attachment.ID).
		Str("user_id", input.UserID).
		Str("format", attachment.Format).
		Int64("size", attachment.SizeBytes).
		Msg("attachment stored")

	return UploadResult{
		Attachment: attachment,
		URL:        s.PublicURL(attachment),
	}, nil
}

func (s *UploadService) List(ctx context.Context, userID string) ([]models.Attachment, error) {
	items, err := s.attachments.ListByUser(ctx, userID, attachmentPageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}

func (s *UploadService) PublicURL(attachment models.Attachment) string {
	base := strings.TrimSuffix(s.cfg.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		scheme := "http://"
		if s.cfg.UseSSL {
			scheme = "https://"
		}
		base = scheme + base
	}
	return fmt.Sprintf("%s/%s/%s", base, attachment.Bucket, attachment.ObjectKey)
}

func (s *UploadService) readLimited(r io.Reader) ([]byte, error) {
	limit := s.cfg.MaxUploadBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func buildObjectKey(at time.Time, id, ext string) string {
	return path.Join(at.UTC().Format("2006/01/02"), fmt.Sprintf("%s.%s", id, ext))
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
