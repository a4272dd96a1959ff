// Package chat stores the conversations between a job poster and a student.
//
// A thread belongs to an unordered pair of users and can carry messages for
// several jobs; callers always read messages scoped to one job.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/metrics"
	"github.com/campusgig/campusgig-backend/internal/models"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log.Named("chat")}
}

// RoomID is the realtime room for a (poster, student, job) conversation: the
// three ids sorted and joined with hyphens, so argument order never matters.
func RoomID(ids ...string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, "-")
}

// Key identifies a job-scoped conversation.
type Key struct {
	PosterID       uuid.UUID `json:"posterId"`
	AcceptedUserID uuid.UUID `json:"acceptedUserId"`
	JobID          uuid.UUID `json:"jobId"`
}

func (k Key) validate() error {
	if k.PosterID == uuid.Nil || k.AcceptedUserID == uuid.Nil || k.JobID == uuid.Nil {
		return apperr.Validation("posterId, acceptedUserId and jobId are required")
	}
	if k.PosterID == k.AcceptedUserID {
		return apperr.Validation("a conversation needs two different users")
	}
	return nil
}

func (k Key) Room() string {
	return RoomID(k.PosterID.String(), k.AcceptedUserID.String(), k.JobID.String())
}

// Authorize checks that userID is one of the two users of the conversation.
func (k Key) Authorize(userID uuid.UUID) error {
	if err := k.validate(); err != nil {
		return err
	}
	if userID != k.PosterID && userID != k.AcceptedUserID {
		return apperr.Forbidden("you are not part of this conversation")
	}
	return nil
}

func canonical(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() <= b.String() {
		return a, b
	}
	return b, a
}

func findThread(db *gorm.DB, a, b uuid.UUID) (*models.ChatThread, error) {
	low, high := canonical(a, b)
	var t models.ChatThread
	if err := db.First(&t, "user_low = ? AND user_high = ?", low, high).Error; err != nil {
		return nil, apperr.FromStore(err, "chat")
	}
	return &t, nil
}

// ResolveThread returns the thread between two users, creating it when absent.
// Concurrent callers, in either argument order, end up with the same row.
func (s *Service) ResolveThread(ctx context.Context, posterID, acceptedUserID uuid.UUID) (*models.ChatThread, error) {
	if posterID == uuid.Nil || acceptedUserID == uuid.Nil {
		return nil, apperr.Validation("both users are required")
	}
	if posterID == acceptedUserID {
		return nil, apperr.Validation("a conversation needs two different users")
	}

	low, high := canonical(posterID, acceptedUserID)
	fresh := &models.ChatThread{
		UserLow:        low,
		UserHigh:       high,
		PosterID:       posterID,
		AcceptedUserID: acceptedUserID,
	}
	db := s.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_low"}, {Name: "user_high"}},
		DoNothing: true,
	}).Create(fresh).Error
	if err != nil {
		return nil, fmt.Errorf("create chat thread: %w", err)
	}
	return findThread(db, posterID, acceptedUserID)
}

type PostInput struct {
	Key
	SenderID uuid.UUID `json:"senderId"`
	Text     string    `json:"text"`
	File     string    `json:"file"`
	FileType string    `json:"fileType"`
}

// PostMessage appends a message and returns it together with the job-scoped
// conversation in order.
func (s *Service) PostMessage(ctx context.Context, in PostInput) (*models.ChatMessage, []models.ChatMessage, error) {
	if err := in.Key.validate(); err != nil {
		return nil, nil, err
	}
	if in.SenderID == uuid.Nil {
		return nil, nil, apperr.Validation("senderId is required")
	}
	text := strings.TrimSpace(in.Text)
	if text == "" && in.File == "" {
		return nil, nil, apperr.Validation("message text or file is required")
	}

	thread, err := s.ResolveThread(ctx, in.PosterID, in.AcceptedUserID)
	if err != nil {
		return nil, nil, err
	}
	if !thread.HasParty(in.SenderID) {
		return nil, nil, apperr.Forbidden("sender is not part of this conversation")
	}

	msg := &models.ChatMessage{
		ThreadID: thread.ID,
		SenderID: in.SenderID,
		JobID:    in.JobID,
		Text:     text,
		File:     in.File,
		FileType: in.FileType,
	}
	db := s.db.WithContext(ctx)
	if err := db.Create(msg).Error; err != nil {
		return nil, nil, fmt.Errorf("append chat message: %w", err)
	}
	if err := db.Model(&models.ChatThread{}).Where("id = ?", thread.ID).
		Update("updated_at", msg.CreatedAt).Error; err != nil {
		s.log.Warn("touch chat thread", zap.Stringer("thread", thread.ID), zap.Error(err))
	}
	metrics.ChatMessages.Inc()

	msgs, err := s.messages(db, thread.ID, in.JobID)
	if err != nil {
		return nil, nil, err
	}
	return msg, msgs, nil
}

func (s *Service) messages(db *gorm.DB, threadID, jobID uuid.UUID) ([]models.ChatMessage, error) {
	var out []models.ChatMessage
	err := db.Where("thread_id = ? AND job_id = ?", threadID, jobID).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	return out, nil
}

// ListMessages returns the job-scoped conversation, creating the thread on first
// fetch. The viewer must be one of the two users.
func (s *Service) ListMessages(ctx context.Context, k Key, viewerID uuid.UUID) (*models.ChatThread, []models.ChatMessage, error) {
	if err := k.validate(); err != nil {
		return nil, nil, err
	}
	thread, err := s.ResolveThread(ctx, k.PosterID, k.AcceptedUserID)
	if err != nil {
		return nil, nil, err
	}
	if !thread.HasParty(viewerID) {
		return nil, nil, apperr.Forbidden("you are not part of this conversation")
	}
	msgs, err := s.messages(s.db.WithContext(ctx), thread.ID, k.JobID)
	if err != nil {
		return nil, nil, err
	}
	return thread, msgs, nil
}

// MarkSeen flags every message in the thread not sent by the viewer as seen.
// The update covers the whole thread, not only k.JobID; the returned messages
// are the job-scoped conversation.
func (s *Service) MarkSeen(ctx context.Context, k Key, viewerID uuid.UUID) ([]models.ChatMessage, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	thread, err := findThread(db, k.PosterID, k.AcceptedUserID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParty(viewerID) {
		return nil, apperr.Forbidden("you are not part of this conversation")
	}

	if err := db.Model(&models.ChatMessage{}).
		Where("thread_id = ? AND sender_id <> ? AND seen = ?", thread.ID, viewerID, false).
		Update("seen", true).Error; err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}
	return s.messages(db, thread.ID, k.JobID)
}

type ThreadSummary struct {
	models.ChatThread
	LastMessage *models.ChatMessage `json:"lastMessage"`
	Unread      int64               `json:"unread"`
}

// ListThreads returns the user's threads, most recently active first.
func (s *Service) ListThreads(ctx context.Context, userID uuid.UUID) ([]ThreadSummary, error) {
	db := s.db.WithContext(ctx)

	var threads []models.ChatThread
	err := db.Preload("Poster").
		Preload("AcceptedUser").
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("updated_at DESC").
		Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("list chat threads: %w", err)
	}

	out := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		sum := ThreadSummary{ChatThread: t}

		var last models.ChatMessage
		if err := db.Where("thread_id = ?", t.ID).Order("id DESC").Limit(1).Find(&last).Error; err != nil {
			return nil, fmt.Errorf("load last message: %w", err)
		}
		if last.ID != 0 {
			sum.LastMessage = &last
		}
		if err := db.Model(&models.ChatMessage{}).
			Where("thread_id = ? AND sender_id <> ? AND seen = ?", t.ID, userID, false).
			Count(&sum.Unread).Error; err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		out = append(out, sum)
	}
	return out, nil
}
