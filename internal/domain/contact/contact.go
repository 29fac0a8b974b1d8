// Package contact implements the customer message inbox.
package contact

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/storefront/internal/domain/fault"
)

// ErrNotFound is returned when a message does not exist.
var ErrNotFound = fault.New(fault.NotFound, "message not found")

// Subject categorizes a message.
type Subject string

const (
	SubjectOrder      Subject = "order"
	SubjectProduct    Subject = "product"
	SubjectReturn     Subject = "return"
	SubjectComplaint  Subject = "complaint"
	SubjectSuggestion Subject = "suggestion"
	SubjectOther      Subject = "other"
)

var subjects = []Subject{SubjectOrder, SubjectProduct, SubjectReturn, SubjectComplaint, SubjectSuggestion, SubjectOther}

// Valid reports whether s is a known subject.
func (s Subject) Valid() bool {
	return slices.Contains(subjects, s)
}

// Message is a submission from the contact form.
type Message struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Subject   Subject
	Body      string
	Read      bool
	CreatedAt time.Time
}

// Filter narrows the inbox listing.
type Filter struct {
	Read    *bool
	Subject Subject
	Page    int
	Limit   int
}

// Page is one page of the inbox.
type Page struct {
	Messages    []Message
	Total       int
	TotalPages  int
	CurrentPage int
	UnreadCount int
}

// Repository defines persistence operations for messages.
type Repository interface {
	Create(ctx context.Context, m *Message) error
	// List returns messages matching f, newest first, and the match count.
	List(ctx context.Context, f Filter) ([]Message, int, error)
	CountUnread(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) (*Message, error)
	Delete(ctx context.Context, id string) error
}

// SubmitInput holds the fields of a contact form submission.
type SubmitInput struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Body    string
}

// Service implements the inbox.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an inbox Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Submit stores a new unread message.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Message, error) {
	subject := Subject(strings.ToLower(strings.TrimSpace(in.Subject)))
	if !subject.Valid() {
		return nil, fault.Errorf(fault.InvalidInput, "unknown subject %q", in.Subject)
	}
	m := &Message{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:     strings.TrimSpace(in.Phone),
		Subject:   subject,
		Body:      strings.TrimSpace(in.Body),
		CreatedAt: s.now().UTC(),
	}
	if m.Name == "" || m.Email == "" || m.Body == "" {
		return nil, fault.New(fault.InvalidInput, "name, email and message are required")
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, errors.Wrap(err, "create message")
	}
	return m, nil
}

const defaultPageLimit = 20

// List returns a page of messages with the inbox-wide unread count.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Subject != "" && !f.Subject.Valid() {
		return nil, fault.Errorf(fault.InvalidInput, "unknown subject %q", f.Subject)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = defaultPageLimit
	}

	msgs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	unread, err := s.repo.CountUnread(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count unread")
	}
	return &Page{
		Messages:    msgs,
		Total:       total,
		TotalPages:  (total + f.Limit - 1) / f.Limit,
		CurrentPage: f.Page,
		UnreadCount: unread,
	}, nil
}

// MarkRead flags message id as read.
func (s *Service) MarkRead(ctx context.Context, id string) (*Message, error) {
	return s.repo.MarkRead(ctx, id)
}

// Delete removes message id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
